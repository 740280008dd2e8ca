package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// TextExclusions keeps rendered words out of generated images.
	TextExclusions = "text, letters, words, writing, typography, captions, subtitles, labels, signs, banners, written language, alphabet, numbers, symbols"
	// QualityExclusions rejects common generation artifacts.
	QualityExclusions = "blurry, low quality, distorted, watermark, logo, signature, jpeg artifacts, pixelated, grainy"
)

// OpenAIService wraps the OpenAI API for prompt writing, caption
// segmentation, fallback narration and fallback images.
type OpenAIService struct {
	client        *openai.Client
	promptModel   string
	subtitleModel string
	logger        zerolog.Logger
}

func NewOpenAIService(apiKey, promptModel, subtitleModel string, logger zerolog.Logger) *OpenAIService {
	return NewOpenAIServiceWithConfig(openai.DefaultConfig(apiKey), promptModel, subtitleModel, logger)
}

// NewOpenAIServiceWithConfig allows pointing the client at another base URL.
func NewOpenAIServiceWithConfig(cfg openai.ClientConfig, promptModel, subtitleModel string, logger zerolog.Logger) *OpenAIService {
	if promptModel == "" {
		promptModel = openai.GPT4
	}
	if subtitleModel == "" {
		subtitleModel = openai.GPT4oMini
	}
	return &OpenAIService{
		client:        openai.NewClientWithConfig(cfg),
		promptModel:   promptModel,
		subtitleModel: subtitleModel,
		logger:        logger.With().Str("provider", "openai").Logger(),
	}
}

func (s *OpenAIService) Name() string { return "openai" }

// PromptRequest describes the image prompts wanted for one script.
type PromptRequest struct {
	Script           string
	Style            string
	Keywords         string
	NegativeKeywords string
	Count            int
}

// NegativePromptBase is the exclusion list every image prompt carries.
func NegativePromptBase(negativeKeywords string) string {
	base := TextExclusions + ", " + QualityExclusions
	if negativeKeywords = strings.TrimSpace(negativeKeywords); negativeKeywords != "" {
		base += ", " + negativeKeywords
	}
	return base
}

// GeneratePrompts asks the chat model for req.Count scene prompts. The
// result may hold more or fewer prompts than requested.
func (s *OpenAIService) GeneratePrompts(ctx context.Context, req PromptRequest) ([]models.ImagePrompt, error) {
	negative := NegativePromptBase(req.NegativeKeywords)
	systemPrompt := buildPromptSystemPrompt(req, negative)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.promptModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Script: " + req.Script,
			},
		},
		Temperature: 0.8,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	content := resp.Choices[0].Message.Content
	arr, err := extractJSONArray(content)
	if err != nil {
		s.logger.Warn().Str("raw", truncate(content, 500)).Msg("prompt response is not a JSON array")
		return nil, err
	}

	var prompts []models.ImagePrompt
	if err := json.Unmarshal([]byte(arr), &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}

	out := make([]models.ImagePrompt, 0, len(prompts))
	for _, p := range prompts {
		if strings.TrimSpace(p.Prompt) == "" {
			continue
		}
		if strings.TrimSpace(p.NegativePrompt) == "" {
			p.NegativePrompt = negative
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("openai returned no usable prompts")
	}

	s.logger.Info().Int("requested", req.Count).Int("received", len(out)).Msg("image prompts generated")
	return out, nil
}

func buildPromptSystemPrompt(req PromptRequest, negative string) string {
	keywordsInstruction := "Use vivid, descriptive language"
	if strings.TrimSpace(req.Keywords) != "" {
		keywordsInstruction = "Include these keywords: " + req.Keywords
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You write detailed prompts for an AI image generator.\n")
	fmt.Fprintf(&b, "Create exactly %d unique image prompts for the script you are given.\n\n", req.Count)
	b.WriteString("Rules:\n")
	b.WriteString("1. Each prompt depicts one key scene or moment of the script, in script order\n")
	fmt.Fprintf(&b, "2. Visual style: %s\n", req.Style)
	fmt.Fprintf(&b, "3. %s\n", keywordsInstruction)
	b.WriteString("4. One or two vivid sentences per prompt\n")
	b.WriteString("5. Never describe text, letters, words or writing in the scene\n")
	b.WriteString("6. Describe people, objects, landscapes, atmosphere, lighting and color\n")
	fmt.Fprintf(&b, "7. Every negative_prompt must contain: %s\n\n", negative)
	b.WriteString("Respond with only a JSON array in this form:\n")
	fmt.Fprintf(&b, "[{\"prompt\": \"scene description in %s style, no text, no letters, no words\", \"negative_prompt\": \"%s\"}]\n", req.Style, negative)
	return b.String()
}

const segmentSystemPrompt = "You create video subtitles. Produce concise, readable caption segments that follow natural speech."

// SegmentScript splits a script into short caption lines with the chat model.
func (s *OpenAIService) SegmentScript(ctx context.Context, script string) ([]string, error) {
	userPrompt := "Split this video script into subtitle segments.\n" +
		"Each segment must:\n" +
		"- be one or two short sentences of 5 to 12 words\n" +
		"- follow the natural rhythm and pauses of speech\n" +
		"- end at a natural break\n" +
		"Keep every word of the script, in order. Do not drop, add or reword anything.\n\n" +
		"Script:\n" + script + "\n\n" +
		"Respond with only a JSON array of strings: [\"segment 1\", \"segment 2\"]"

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.subtitleModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: segmentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	content := stripCodeFences(resp.Choices[0].Message.Content)

	var segments []string
	if err := json.Unmarshal([]byte(content), &segments); err != nil {
		return nil, fmt.Errorf("failed to parse segments: %w", err)
	}

	out := segments[:0]
	for _, seg := range segments {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("openai returned no segments")
	}

	return out, nil
}

// extractJSONArray returns the text between the first '[' and the last ']'.
func extractJSONArray(content string) (string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON array in response")
	}
	return content[start : end+1], nil
}

// stripCodeFences removes a surrounding ```json ... ``` block.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
