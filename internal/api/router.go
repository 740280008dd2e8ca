package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string
}

func NewRouter(h *Handler, logger zerolog.Logger, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CorsAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Jobs
		r.Post("/create-video", h.CreateVideo)
		r.Get("/job-status/{id}", h.JobStatus)
		r.Get("/queue", h.QueueStatus)
		r.Post("/queue/cleanup", h.CleanupJobs)

		// Catalog
		r.Get("/all-videos", h.ListVideos)
		r.Get("/videos/search", h.SearchVideos)
		r.Get("/video/{id}", h.GetVideo)
		r.Patch("/video/{id}", h.UpdateVideo)
		r.Delete("/video/{id}", h.DeleteVideo)
		r.Get("/download/{id}", h.DownloadVideo)

		// Generation options
		r.Get("/config", h.Config)
		r.Get("/styles", h.Styles)
		r.Get("/voices", h.Voices)
		r.Get("/formats", h.Formats)
	})

	return r
}

func allowedOrigins(raw string) []string {
	origins := []string{"*"}
	if raw == "" {
		return origins
	}
	trimmed := make([]string, 0)
	for _, o := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(o); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) > 0 {
		origins = trimmed
	}
	return origins
}
