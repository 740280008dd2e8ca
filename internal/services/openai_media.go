package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/bobarin/clipforge/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// Ensure OpenAIService can stand in as both a narration and an image provider.
var (
	_ TTSService    = (*OpenAIService)(nil)
	_ ImageProvider = (*OpenAIService)(nil)
)

// openAIVoices maps catalogue voice names onto OpenAI TTS voices.
var openAIVoices = map[string]openai.SpeechVoice{
	"Zara":          openai.VoiceNova,
	"Shelby":        openai.VoiceShimmer,
	"James":         openai.VoiceOnyx,
	"B.Giffen":      openai.VoiceFable,
	"Adam":          openai.VoiceEcho,
	"Lulu Lollipop": openai.VoiceAlloy,
}

// OpenAIVoice returns the OpenAI voice for a catalogue name, nova when unknown.
func OpenAIVoice(name string) openai.SpeechVoice {
	if v, ok := openAIVoices[name]; ok {
		return v
	}
	return openai.VoiceNova
}

// GenerateSpeech narrates text with the tts-1 model.
func (s *OpenAIService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          OpenAIVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai audio: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}

	s.logger.Info().Str("voice", string(OpenAIVoice(voice))).Int("bytes", len(audioData)).Msg("speech generated")

	return &TTSResponse{
		AudioData:  audioData,
		DurationMs: estimateAudioDuration(text, 1.0),
		Format:     "mp3",
	}, nil
}

// dallESize picks the DALL-E 3 canvas closest to the video format.
func dallESize(format string) string {
	switch format {
	case "9:16":
		return openai.CreateImageSize1024x1792
	case "16:9":
		return openai.CreateImageSize1792x1024
	default:
		return openai.CreateImageSize1024x1024
	}
}

// GenerateImage renders one prompt with DALL-E 3. DALL-E has no negative
// prompt field, so the exclusions are appended to the prompt text.
func (s *OpenAIService) GenerateImage(ctx context.Context, prompt models.ImagePrompt, format string) ([]byte, error) {
	text := prompt.Prompt
	if prompt.NegativePrompt != "" {
		text += ". Avoid: " + prompt.NegativePrompt
	}

	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         text,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           dallESize(format),
		Quality:        openai.CreateImageQualityStandard,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("dall-e request failed: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("dall-e returned no image")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dall-e image: %w", err)
	}

	return data, nil
}
