package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bobarin/clipforge/internal/config"
	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/services"
	"github.com/bobarin/clipforge/internal/storage"
	"github.com/rs/zerolog"
)

// generateImages renders one image per prompt. Each prompt walks the image
// providers in order and lands on a placeholder when all of them fail, so
// the result always has one path per prompt.
func (p *Pipeline) generateImages(
	ctx context.Context,
	jobID string,
	prompts []models.ImagePrompt,
	format string,
	dims config.Dimensions,
	log zerolog.Logger,
) ([]string, error) {
	paths := make([]string, 0, len(prompts))
	placeholders := 0

	for i, prompt := range prompts {
		index := i + 1
		data, provider := p.renderImage(ctx, prompt, format, index, log)

		var name string
		if data == nil {
			placeholder, err := services.RenderPlaceholder(index, dims.Width, dims.Height)
			if err != nil {
				return nil, fmt.Errorf("failed to render placeholder %d: %w", index, err)
			}
			data = placeholder
			name = fmt.Sprintf("%s/placeholder_%03d.png", jobID, index)
			placeholders++
		} else {
			name = fmt.Sprintf("%s/image_%03d%s", jobID, index, imageExt(data))
			log.Debug().Int("index", index).Str("provider", provider).Msg("image generated")
		}

		path, err := p.deps.Storage.Write(ctx, storage.KindImages, name, data)
		if err != nil {
			return nil, fmt.Errorf("failed to save image %d: %w", index, err)
		}
		paths = append(paths, path)
	}

	if placeholders > 0 {
		log.Warn().Int("placeholders", placeholders).Int("total", len(prompts)).Msg("some images fell back to placeholders")
	}
	return paths, nil
}

func (p *Pipeline) renderImage(ctx context.Context, prompt models.ImagePrompt, format string, index int, log zerolog.Logger) ([]byte, string) {
	for _, provider := range p.deps.ImageProviders {
		data, err := provider.GenerateImage(ctx, prompt, format)
		if err != nil {
			log.Warn().Err(err).Int("index", index).Str("provider", provider.Name()).Msg("image provider failed")
			continue
		}
		if len(data) == 0 {
			log.Warn().Int("index", index).Str("provider", provider.Name()).Msg("image provider returned no data")
			continue
		}
		return data, provider.Name()
	}
	return nil, ""
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
