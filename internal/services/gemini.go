package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const defaultGeminiImageModel = "gemini-2.5-flash-image"

// GeminiService is the primary image provider.
type GeminiService struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

var _ ImageProvider = (*GeminiService)(nil)

func NewGeminiService(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*GeminiService, error) {
	if model == "" {
		model = defaultGeminiImageModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiService{
		client: client,
		model:  model,
		logger: logger.With().Str("provider", "gemini").Logger(),
	}, nil
}

func (s *GeminiService) Name() string { return "gemini" }

// GenerateImage asks the image model for one picture and returns the first
// inline image part of the answer.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt models.ImagePrompt, format string) ([]byte, error) {
	text := prompt.Prompt
	if prompt.NegativePrompt != "" {
		text += ". Avoid: " + prompt.NegativePrompt
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: format},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 && strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, fmt.Errorf("gemini returned no image data")
}
