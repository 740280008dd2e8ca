package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech Service
// Primary narration provider. Voice names are resolved through the voice
// catalogue passed in at construction.
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_turbo_v2_5"
	elevenLabsOutputFormat = "mp3_44100_128"
)

// ElevenLabsService handles text-to-speech via ElevenLabs API.
type ElevenLabsService struct {
	apiKey  string
	baseURL string
	modelID string
	voices  map[string]string // voice name -> ElevenLabs voice id
	client  *http.Client
	retry   retryPolicy
	logger  zerolog.Logger
}

// Ensure ElevenLabsService implements TTSService at compile time.
var _ TTSService = (*ElevenLabsService)(nil)

// NewElevenLabsService creates an ElevenLabs TTS service. voices maps
// catalogue names to ElevenLabs voice ids.
func NewElevenLabsService(apiKey string, voices map[string]string, logger zerolog.Logger) *ElevenLabsService {
	return &ElevenLabsService{
		apiKey:  apiKey,
		baseURL: elevenLabsBaseURL,
		modelID: elevenLabsDefaultModel,
		voices:  voices,
		client:  &http.Client{Timeout: 90 * time.Second},
		retry:   defaultRetryPolicy,
		logger:  logger.With().Str("provider", "elevenlabs").Logger(),
	}
}

func (s *ElevenLabsService) Name() string { return "elevenlabs" }

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// GenerateSpeech converts text to speech using ElevenLabs.
func (s *ElevenLabsService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	voiceID, ok := s.voices[voice]
	if !ok {
		return nil, fmt.Errorf("unknown ElevenLabs voice %q", voice)
	}

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: s.modelID,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			UseSpeakerBoost: true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	// POST /v1/text-to-speech/{voice_id}?output_format=mp3_44100_128
	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", s.baseURL, voiceID, elevenLabsOutputFormat)

	s.logger.Debug().Str("voice", voice).Str("model", s.modelID).Int("text_len", len(text)).Msg("generating speech")

	audioData, err := doWithRetry(ctx, s.client, s.retry, s.logger, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")
		req.Header.Set("xi-api-key", s.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs request failed: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned empty audio")
	}

	durationMs := estimateAudioDuration(text, 1.0)
	s.logger.Info().Int("bytes", len(audioData)).Int("estimated_ms", durationMs).Msg("speech generated")

	return &TTSResponse{
		AudioData:  audioData,
		DurationMs: durationMs,
		Format:     "mp3",
	}, nil
}
