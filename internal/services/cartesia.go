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

const (
	CartesiaAPIVersion = "2024-06-10"

	// DefaultCartesiaVoiceID is used when no voice is configured.
	DefaultCartesiaVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

// CartesiaService is the last narration provider in the chain. It always
// speaks with one configured voice regardless of the requested name.
type CartesiaService struct {
	apiKey     string
	apiURL     string
	apiVersion string
	voiceID    string
	client     *http.Client
	retry      retryPolicy
	logger     zerolog.Logger
}

// Ensure CartesiaService implements TTSService at compile time.
var _ TTSService = (*CartesiaService)(nil)

func NewCartesiaService(apiKey, apiURL, voiceID string, logger zerolog.Logger) *CartesiaService {
	if voiceID == "" {
		voiceID = DefaultCartesiaVoiceID
	}
	return &CartesiaService{
		apiKey:     apiKey,
		apiURL:     apiURL,
		apiVersion: CartesiaAPIVersion,
		voiceID:    voiceID,
		client:     &http.Client{Timeout: 60 * time.Second},
		retry:      defaultRetryPolicy,
		logger:     logger.With().Str("provider", "cartesia").Logger(),
	}
}

func (s *CartesiaService) Name() string { return "cartesia" }

type cartesiaRequest struct {
	ModelID      string                 `json:"model_id"`
	Transcript   string                 `json:"transcript"`
	Voice        cartesiaVoiceSpecifier `json:"voice"`
	Language     string                 `json:"language,omitempty"`
	OutputFormat cartesiaOutputFormat   `json:"output_format"`
}

type cartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

// GenerateSpeech generates audio from text using Cartesia TTS.
func (s *CartesiaService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	reqBody := cartesiaRequest{
		ModelID:    "sonic-english",
		Transcript: text,
		Voice:      cartesiaVoiceSpecifier{Mode: "id", ID: s.voiceID},
		Language:   "en",
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/tts/bytes", s.apiURL)

	s.logger.Debug().Str("requested_voice", voice).Str("voice_id", s.voiceID).Msg("generating speech")

	audioData, err := doWithRetry(ctx, s.client, s.retry, s.logger, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cartesia-Version", s.apiVersion)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cartesia request failed: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("cartesia returned empty audio")
	}

	return &TTSResponse{
		AudioData:  audioData,
		DurationMs: estimateAudioDuration(text, 1.0),
		Format:     "mp3",
	}, nil
}
