package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobarin/clipforge/internal/services"
	"github.com/bobarin/clipforge/internal/storage"
	"github.com/rs/zerolog"
)

// resolveVoice returns name when it is a catalogue voice and the default otherwise.
func (p *Pipeline) resolveVoice(name string, log zerolog.Logger) string {
	for _, v := range p.settings.Voices {
		if v.Name == name {
			return name
		}
	}
	if name != "" {
		log.Warn().Str("voice", name).Str("default", p.settings.DefaultVoice).Msg("unknown voice, using default")
	}
	return p.settings.DefaultVoice
}

// narrate walks the narration providers in order and stores the first
// audio that comes back.
func (p *Pipeline) narrate(ctx context.Context, jobID, script, voice string, log zerolog.Logger) (string, error) {
	if len(p.deps.Narrators) == 0 {
		return "", fmt.Errorf("%w: none configured", ErrNoNarration)
	}

	var errs []error
	for _, provider := range p.deps.Narrators {
		resp, err := provider.GenerateSpeech(ctx, script, voice)
		if err != nil {
			log.Warn().Err(err).Str("provider", provider.Name()).Msg("narration provider failed")
			errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
			continue
		}

		format := resp.Format
		if format == "" {
			format = "mp3"
		}
		name := fmt.Sprintf("narration_%s_%s_%s.%s", services.Slugify(voice), provider.Name(), shortID(jobID), format)
		path, err := p.deps.Storage.Write(ctx, storage.KindAudio, name, resp.AudioData)
		if err != nil {
			return "", fmt.Errorf("failed to save narration: %w", err)
		}

		log.Info().Str("provider", provider.Name()).Str("voice", voice).Str("path", path).Msg("narration ready")
		return path, nil
	}

	return "", fmt.Errorf("%w: %w", ErrNoNarration, errors.Join(errs...))
}
