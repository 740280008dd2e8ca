package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bobarin/clipforge/internal/config"
	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/services"
	"github.com/bobarin/clipforge/internal/storage"
	"github.com/rs/zerolog"
)

// ErrNoNarration means every narration provider failed.
var ErrNoNarration = errors.New("all narration providers failed")

// PromptProvider writes image prompts for a script.
type PromptProvider interface {
	GeneratePrompts(ctx context.Context, req services.PromptRequest) ([]models.ImagePrompt, error)
}

// Composer measures narration and renders the finished video.
type Composer interface {
	GetAudioDuration(ctx context.Context, audioPath string) (float64, error)
	Compose(ctx context.Context, req services.ComposeRequest) error
}

// Subtitler produces timed caption segments for a script.
type Subtitler interface {
	Generate(ctx context.Context, script string, total float64) []models.SubtitleSegment
}

// Catalog stores finished video records.
type Catalog interface {
	AddVideo(ctx context.Context, video *models.Video) (int64, error)
}

// ProgressFunc receives coarse checkpoints while a job runs.
type ProgressFunc func(progress int, message string)

// Progress checkpoints reported at the start of each stage.
const (
	ProgressNarration   = 15
	ProgressPrompts     = 30
	ProgressImages      = 45
	ProgressComposition = 70
	ProgressPersistence = 90
)

// Deps are the collaborators a Pipeline delegates to. Narrators and
// ImageProviders are tried in order; Prompts may be nil.
type Deps struct {
	Narrators      []services.TTSService
	Prompts        PromptProvider
	ImageProviders []services.ImageProvider
	Composer       Composer
	Subtitles      Subtitler
	Catalog        Catalog
	Storage        *storage.Storage
}

// Settings are the generation knobs taken from configuration.
type Settings struct {
	Formats      map[string]config.Dimensions
	Voices       []config.Voice
	DefaultVoice string
	ImageCount   int // 0 = derive from script length
}

// Pipeline turns one video request into a finished, catalogued video.
type Pipeline struct {
	deps     Deps
	settings Settings
	logger   zerolog.Logger
	now      func() time.Time
}

func New(deps Deps, settings Settings, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		deps:     deps,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes narration, prompt generation, image generation, composition
// and persistence in that order and returns the stored record. Any error
// aborts the remaining stages. Artifacts already written are kept.
func (p *Pipeline) Run(ctx context.Context, jobID string, req models.VideoRequest, report ProgressFunc) (*models.Video, error) {
	if report == nil {
		report = func(int, string) {}
	}
	req = req.WithDefaults()
	log := p.logger.With().Str("job_id", jobID).Logger()

	dims, ok := p.settings.Formats[req.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported video format %q", req.Format)
	}

	// 1. Narration
	report(ProgressNarration, "Generating narration...")
	voice := p.resolveVoice(req.Voice, log)
	audioPath, err := p.narrate(ctx, jobID, req.Script, voice, log)
	if err != nil {
		return nil, fmt.Errorf("narration: %w", err)
	}

	// 2. Prompt generation
	report(ProgressPrompts, "Generating image prompts...")
	prompts := p.generatePrompts(ctx, req, log)
	log.Info().Int("prompts", len(prompts)).Msg("image prompts ready")

	// 3. Image generation
	report(ProgressImages, fmt.Sprintf("Generating %d images...", len(prompts)))
	imagePaths, err := p.generateImages(ctx, jobID, prompts, req.Format, dims, log)
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}

	// 4. Composition
	report(ProgressComposition, "Composing video...")
	videoPath, duration, err := p.compose(ctx, jobID, req, audioPath, imagePaths, dims, log)
	if err != nil {
		return nil, fmt.Errorf("composition: %w", err)
	}

	// 5. Persistence
	report(ProgressPersistence, "Saving video record...")
	video := &models.Video{
		Title:            req.Title,
		Category:         req.Category,
		Format:           req.Format,
		Style:            req.Style,
		Voice:            voice,
		Script:           req.Script,
		Keywords:         req.Keywords,
		NegativeKeywords: req.NegativeKeywords,
		Path:             videoPath,
		Duration:         duration,
		CreatedAt:        p.now().UTC(),
		Status:           models.VideoStatusCompleted,
	}

	id, err := p.deps.Catalog.AddVideo(ctx, video)
	if err != nil {
		return nil, fmt.Errorf("persistence: %w", err)
	}

	// 6. Result
	video.ID = id
	log.Info().Int64("video_id", id).Str("path", videoPath).Float64("duration", duration).Msg("video generated")
	return video, nil
}

// compose measures the narration, builds captions and renders the video.
func (p *Pipeline) compose(
	ctx context.Context,
	jobID string,
	req models.VideoRequest,
	audioPath string,
	imagePaths []string,
	dims config.Dimensions,
	log zerolog.Logger,
) (string, float64, error) {
	duration, err := p.deps.Composer.GetAudioDuration(ctx, audioPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to measure narration: %w", err)
	}

	segments := p.deps.Subtitles.Generate(ctx, req.Script, duration)
	log.Debug().Int("segments", len(segments)).Float64("duration", duration).Msg("subtitles ready")

	name := fmt.Sprintf("%s-%s.mp4", services.Slugify(req.Title), shortID(jobID))
	outputPath, err := p.deps.Storage.Path(storage.KindVideos, name)
	if err != nil {
		return "", 0, err
	}

	workDir, err := p.deps.Storage.ScratchDir("job-" + shortID(jobID))
	if err != nil {
		return "", 0, err
	}
	defer os.RemoveAll(workDir)

	err = p.deps.Composer.Compose(ctx, services.ComposeRequest{
		ImagePaths:    imagePaths,
		AudioPath:     audioPath,
		AudioDuration: duration,
		Segments:      segments,
		Width:         dims.Width,
		Height:        dims.Height,
		OutputPath:    outputPath,
		WorkDir:       workDir,
	})
	if err != nil {
		return "", 0, err
	}

	if len(segments) > 0 {
		srtPath := strings.TrimSuffix(outputPath, ".mp4") + ".srt"
		if err := services.WriteSRT(segments, srtPath); err != nil {
			log.Warn().Err(err).Msg("failed to write SRT sidecar")
		}
	}

	return outputPath, duration, nil
}

func shortID(jobID string) string {
	if len(jobID) > 8 {
		return jobID[:8]
	}
	return jobID
}
