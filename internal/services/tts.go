package services

import (
	"context"
	"strings"
)

// ---------------------------------------------------------------------------
// TTSService: common interface for text-to-speech providers.
// ElevenLabs, OpenAI and Cartesia implement it so narration can walk an
// ordered chain of providers without knowing which one answered.
// ---------------------------------------------------------------------------

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData  []byte
	DurationMs int
	Format     string // "mp3", "wav", etc.
}

// TTSService is the interface that any TTS provider must implement.
type TTSService interface {
	// Name identifies the provider in logs and artifact names.
	Name() string
	// GenerateSpeech converts text to audio. voice is a catalogue voice name
	// ("Zara", "Adam", ...); each provider maps it onto its own voices.
	GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error)
}

// estimateAudioDuration estimates duration based on text length and speed.
// Average narration pace is ~140 words per minute at normal speed.
func estimateAudioDuration(text string, speed float64) int {
	if speed <= 0 {
		speed = 1.0
	}
	words := len(strings.Fields(text))
	actualWPM := 140.0 * speed

	minutes := float64(words) / actualWPM
	return int(minutes * 60 * 1000)
}
