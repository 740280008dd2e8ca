package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/services"
	"github.com/rs/zerolog"
)

// ImageCount picks how many images a script gets. A positive fixed value
// wins; otherwise the count grows with the word count.
func ImageCount(script string, fixed int) int {
	if fixed > 0 {
		return fixed
	}

	words := len(strings.Fields(script))
	switch {
	case words < 100:
		return clamp(words/20+2, 3, 5)
	case words < 300:
		return clamp(words/40+3, 5, 7)
	case words < 500:
		return clamp(words/50+4, 7, 10)
	default:
		return clamp(words/60+5, 10, 12)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// generatePrompts asks the prompt provider for count prompts and falls back
// to slicing the script when it is missing or fails.
func (p *Pipeline) generatePrompts(ctx context.Context, req models.VideoRequest, log zerolog.Logger) []models.ImagePrompt {
	count := ImageCount(req.Script, p.settings.ImageCount)

	if p.deps.Prompts != nil {
		prompts, err := p.deps.Prompts.GeneratePrompts(ctx, services.PromptRequest{
			Script:           req.Script,
			Style:            req.Style,
			Keywords:         req.Keywords,
			NegativeKeywords: req.NegativeKeywords,
			Count:            count,
		})
		if err == nil && len(prompts) > 0 {
			return FitPrompts(prompts, count)
		}
		log.Warn().Err(err).Msg("prompt generation failed, deriving prompts from script")
	}

	return FallbackPrompts(req.Script, req.Style, req.NegativeKeywords, count)
}

// FitPrompts pads prompts by repeating the last one, or truncates, so
// exactly count remain.
func FitPrompts(prompts []models.ImagePrompt, count int) []models.ImagePrompt {
	if len(prompts) == 0 || count <= 0 {
		return nil
	}
	if len(prompts) >= count {
		return prompts[:count]
	}
	out := make([]models.ImagePrompt, count)
	copy(out, prompts)
	last := prompts[len(prompts)-1]
	for i := len(prompts); i < count; i++ {
		out[i] = last
	}
	return out
}

// FallbackPrompts splits the script into count word chunks and turns each
// into a prompt. The last chunk takes the remaining words.
func FallbackPrompts(script, style, negativeKeywords string, count int) []models.ImagePrompt {
	if count <= 0 {
		return nil
	}
	if style == "" {
		style = "cinematic"
	}
	negative := services.NegativePromptBase(negativeKeywords)

	words := strings.Fields(script)
	size := len(words) / count
	if size < 1 {
		size = 1
	}

	prompts := make([]models.ImagePrompt, 0, count)
	for i := 0; i < count; i++ {
		start := i * size
		end := start + size
		if i == count-1 {
			end = len(words)
		}

		var chunk string
		if start < len(words) {
			if end > len(words) {
				end = len(words)
			}
			chunk = strings.Join(words[start:end], " ")
		}
		if chunk == "" {
			chunk = fmt.Sprintf("Scene %d", i+1)
		}
		if r := []rune(chunk); len(r) > 100 {
			chunk = string(r[:100])
		}

		prompts = append(prompts, models.ImagePrompt{
			Prompt:         fmt.Sprintf("%s in %s style, high quality, detailed, no text, no letters", chunk, style),
			NegativePrompt: negative,
		})
	}
	return prompts
}
