package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/clipforge/internal/api"
	"github.com/bobarin/clipforge/internal/config"
	"github.com/bobarin/clipforge/internal/db"
	"github.com/bobarin/clipforge/internal/logger"
	"github.com/bobarin/clipforge/internal/pipeline"
	"github.com/bobarin/clipforge/internal/queue"
	"github.com/bobarin/clipforge/internal/services"
	"github.com/bobarin/clipforge/internal/storage"
	"github.com/bobarin/clipforge/internal/worker"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("production", "")
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	log.Info().Str("env", cfg.AppEnv).Msg("starting clipforge API")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server exited")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local artifact storage
	stor, err := storage.New(cfg.OutputDir, cfg.TempDir)
	if err != nil {
		return err
	}

	// Job store + queue
	store, err := queue.OpenStore(cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}
	q := queue.New(store, logger.Component(log, "queue"))
	log.Info().Str("store", cfg.JobStore).Msg("job store ready")

	if removed, err := q.CleanupOlderThan(ctx, cfg.JobRetentionDays); err != nil {
		log.Warn().Err(err).Msg("startup job cleanup failed")
	} else if removed > 0 {
		log.Info().Int("removed", removed).Int("days", cfg.JobRetentionDays).Msg("removed old jobs")
	}

	// Video catalog
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info().Msg("connected to database")

	handler, err := api.NewHandler(q, database, stor, cfg, logger.Component(log, "api"))
	if err != nil {
		return err
	}
	router := api.NewRouter(handler, logger.Component(log, "http"), api.RouterConfig{
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var w *worker.Worker
	if cfg.WorkerEnabled {
		p, err := buildPipeline(ctx, cfg, stor, database, log)
		if err != nil {
			return err
		}
		w = worker.New(q, p, cfg.WorkerPollInterval, logger.Component(log, "worker"))
	} else {
		log.Warn().Msg("worker disabled, queued jobs will not be processed by this process")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if w != nil {
		w.Start(gctx)
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		if w != nil && w.Running() {
			log.Info().Msg("stopping worker")
			w.Stop()
		}
		return err
	})

	return g.Wait()
}

// buildPipeline wires the provider chains from whatever keys are configured.
func buildPipeline(ctx context.Context, cfg *config.Config, stor *storage.Storage, catalog *db.DB, log zerolog.Logger) (*pipeline.Pipeline, error) {
	var openaiSvc *services.OpenAIService
	if cfg.OpenAIKey != "" {
		openaiSvc = services.NewOpenAIService(cfg.OpenAIKey, cfg.PromptModel, cfg.SubtitleModel, logger.Component(log, "openai"))
	}

	// Narration: ElevenLabs, then OpenAI TTS, then Cartesia
	var narrators []services.TTSService
	if cfg.ElevenLabsKey != "" {
		voices := make(map[string]string, len(cfg.Voices))
		for _, v := range cfg.Voices {
			voices[v.Name] = v.ID
		}
		narrators = append(narrators, services.NewElevenLabsService(cfg.ElevenLabsKey, voices, logger.Component(log, "elevenlabs")))
	}
	if openaiSvc != nil {
		narrators = append(narrators, openaiSvc)
	}
	if cfg.CartesiaKey != "" && cfg.CartesiaVoiceID != "" {
		narrators = append(narrators, services.NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaURL, cfg.CartesiaVoiceID, logger.Component(log, "cartesia")))
	}

	// Images: Gemini, then DALL-E, then placeholder
	var images []services.ImageProvider
	if cfg.GeminiKey != "" {
		gemini, err := services.NewGeminiService(ctx, cfg.GeminiKey, cfg.GeminiImageModel, logger.Component(log, "gemini"))
		if err != nil {
			log.Warn().Err(err).Msg("gemini unavailable, skipping")
		} else {
			images = append(images, gemini)
		}
	}
	if openaiSvc != nil {
		images = append(images, openaiSvc)
	}

	var (
		prompts   pipeline.PromptProvider
		segmenter services.ScriptSegmenter
	)
	if openaiSvc != nil {
		prompts = openaiSvc
		segmenter = openaiSvc
	}

	narratorNames := make([]string, 0, len(narrators))
	for _, n := range narrators {
		narratorNames = append(narratorNames, n.Name())
	}
	imageNames := make([]string, 0, len(images))
	for _, i := range images {
		imageNames = append(imageNames, i.Name())
	}
	log.Info().
		Strs("narration", narratorNames).
		Strs("images", imageNames).
		Bool("ai_prompts", prompts != nil).
		Msg("pipeline providers configured")

	return pipeline.New(pipeline.Deps{
		Narrators:      narrators,
		Prompts:        prompts,
		ImageProviders: images,
		Composer:       services.NewFFmpegService(cfg.DefaultFPS, logger.Component(log, "ffmpeg")),
		Subtitles:      services.NewSubtitleGenerator(segmenter, logger.Component(log, "subtitles")),
		Catalog:        catalog,
		Storage:        stor,
	}, pipeline.Settings{
		Formats:      cfg.VideoFormats,
		Voices:       cfg.Voices,
		DefaultVoice: cfg.DefaultVoice,
		ImageCount:   cfg.ImageCount,
	}, logger.Component(log, "pipeline")), nil
}

