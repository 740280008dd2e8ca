package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bobarin/clipforge/internal/config"
	"github.com/bobarin/clipforge/internal/db"
	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// JobQueue is what the handlers need from the job queue.
type JobQueue interface {
	Add(ctx context.Context, req models.VideoRequest) (string, error)
	Get(ctx context.Context, jobID string) (*models.Job, error)
	Position(ctx context.Context, jobID string) (int, error)
	Snapshot(ctx context.Context) (*models.QueueSnapshot, error)
	CleanupOlderThan(ctx context.Context, days int) (int, error)
}

// Catalog is what the handlers need from the video catalog.
type Catalog interface {
	GetVideo(ctx context.Context, id int64) (*models.Video, error)
	ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, error)
	CountVideos(ctx context.Context) (int, error)
	SearchVideos(ctx context.Context, query string) ([]*models.Video, error)
	UpdateVideo(ctx context.Context, id int64, u models.VideoUpdate) (bool, error)
	DeleteVideo(ctx context.Context, id int64) (bool, error)
}

// ArtifactFiles resolves and deletes artifacts in local storage. Both refuse
// paths outside the output directory with storage.ErrOutsideRoot.
type ArtifactFiles interface {
	Resolve(path string) (string, error)
	Remove(path string) error
}

const maxListLimit = 100

type Handler struct {
	queue     JobQueue
	catalog   Catalog
	files     ArtifactFiles
	cfg       *config.Config
	validator *requestValidator
	logger    zerolog.Logger
}

func NewHandler(q JobQueue, catalog Catalog, files ArtifactFiles, cfg *config.Config, logger zerolog.Logger) (*Handler, error) {
	rv, err := newRequestValidator(cfg)
	if err != nil {
		return nil, err
	}
	return &Handler{
		queue:     q,
		catalog:   catalog,
		files:     files,
		cfg:       cfg,
		validator: rv,
		logger:    logger,
	}, nil
}

// CreateVideo handles POST /api/create-video
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.VideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validator.VideoRequest(&req); err != nil {
		h.respondValidation(w, err)
		return
	}

	jobID, err := h.queue.Add(r.Context(), req)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to queue job")
		respondError(w, http.StatusInternalServerError, "Failed to queue video generation")
		return
	}

	position, err := h.queue.Position(r.Context(), jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to read queue position")
		position = -1
	}

	respondJSON(w, http.StatusAccepted, models.CreateVideoResponse{
		JobID:         jobID,
		Message:       "Video generation queued",
		QueuePosition: position,
	})
}

// JobStatus handles GET /api/job-status/{id}
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.queue.Get(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to load job")
		respondError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	position, err := h.queue.Position(r.Context(), jobID)
	if err != nil {
		position = -1
	}

	respondJSON(w, http.StatusOK, models.JobStatusResponse{Job: job, QueuePosition: position})
}

// QueueStatus handles GET /api/queue
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.queue.Snapshot(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to snapshot queue")
		respondError(w, http.StatusInternalServerError, "Failed to load queue")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// CleanupJobs handles POST /api/queue/cleanup?days=N
func (h *Handler) CleanupJobs(w http.ResponseWriter, r *http.Request) {
	days := h.cfg.JobRetentionDays
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = parsed
	}

	removed, err := h.queue.CleanupOlderThan(r.Context(), days)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to clean up jobs")
		respondError(w, http.StatusInternalServerError, "Failed to clean up jobs")
		return
	}

	respondJSON(w, http.StatusOK, models.CleanupResponse{Removed: removed, Days: days})
}

// ListVideos handles GET /api/all-videos
// Query params:
//   - limit:  max results per page (default and max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	limit := maxListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.catalog.CountVideos(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count videos")
		respondError(w, http.StatusInternalServerError, "Failed to count videos")
		return
	}

	videos, err := h.catalog.ListVideos(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list videos")
		respondError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}

	respondJSON(w, http.StatusOK, models.ListVideosResponse{
		Videos: videos,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// SearchVideos handles GET /api/videos/search?q=
func (h *Handler) SearchVideos(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	videos, err := h.catalog.SearchVideos(r.Context(), q)
	if err != nil {
		h.logger.Error().Err(err).Str("query", q).Msg("failed to search videos")
		respondError(w, http.StatusInternalServerError, "Failed to search videos")
		return
	}

	respondJSON(w, http.StatusOK, models.SearchVideosResponse{Query: q, Videos: videos, Count: len(videos)})
}

// GetVideo handles GET /api/video/{id}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, video)
}

// UpdateVideo handles PATCH /api/video/{id}
func (h *Handler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(w, r)
	if !ok {
		return
	}

	var u models.VideoUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if u.Empty() {
		respondError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	if err := h.validator.VideoUpdate(&u); err != nil {
		h.respondValidation(w, err)
		return
	}

	updated, err := h.catalog.UpdateVideo(r.Context(), id, u)
	if err != nil {
		h.logger.Error().Err(err).Int64("video_id", id).Msg("failed to update video")
		respondError(w, http.StatusInternalServerError, "Failed to update video")
		return
	}
	if !updated {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}

	video, err := h.catalog.GetVideo(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load video")
		return
	}
	respondJSON(w, http.StatusOK, video)
}

// DeleteVideo handles DELETE /api/video/{id}
// The record goes first, then the video file and its subtitle sidecar.
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	log := h.logger.With().Int64("video_id", video.ID).Logger()
	if _, err := h.catalog.DeleteVideo(r.Context(), video.ID); err != nil {
		log.Error().Err(err).Msg("failed to delete video")
		respondError(w, http.StatusInternalServerError, "Failed to delete video")
		return
	}

	for _, path := range []string{video.Path, strings.TrimSuffix(video.Path, ".mp4") + ".srt"} {
		if err := h.files.Remove(path); err != nil {
			if errors.Is(err, storage.ErrOutsideRoot) {
				log.Warn().Str("path", path).Msg("refusing to delete file outside output directory")
				continue
			}
			log.Warn().Err(err).Str("path", path).Msg("failed to delete video file")
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Video deleted successfully"})
}

// DownloadVideo handles GET /api/download/{id}
func (h *Handler) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	path, err := h.files.Resolve(video.Path)
	if err != nil {
		h.logger.Warn().Err(err).Int64("video_id", video.ID).Str("path", video.Path).Msg("refusing to serve video file")
		respondError(w, http.StatusNotFound, "Video file not found")
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "Video file not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// Config handles GET /api/config
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"video_formats":     h.formatNames(),
		"video_styles":      h.cfg.VideoStyles,
		"voice_types":       h.voiceNames(),
		"max_script_length": h.cfg.MaxScriptLength,
		"image_count":       h.cfg.ImageCount,
	})
}

// Styles handles GET /api/styles
func (h *Handler) Styles(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"styles": h.cfg.VideoStyles,
		"count":  len(h.cfg.VideoStyles),
	})
}

// Voices handles GET /api/voices
func (h *Handler) Voices(w http.ResponseWriter, r *http.Request) {
	details := make(map[string]string, len(h.cfg.Voices))
	for _, v := range h.cfg.Voices {
		details[v.Name] = v.ID
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"voices":        h.voiceNames(),
		"voice_details": details,
		"count":         len(h.cfg.Voices),
	})
}

// Formats handles GET /api/formats
func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"formats": h.cfg.VideoFormats,
		"count":   len(h.cfg.VideoFormats),
	})
}

// Helper methods

func (h *Handler) formatNames() []string {
	names := make([]string, 0, len(h.cfg.VideoFormats))
	for name := range h.cfg.VideoFormats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Handler) voiceNames() []string {
	names := make([]string, 0, len(h.cfg.Voices))
	for _, v := range h.cfg.Voices {
		names = append(names, v.Name)
	}
	return names
}

func (h *Handler) loadVideo(w http.ResponseWriter, r *http.Request) (*models.Video, bool) {
	id, ok := videoID(w, r)
	if !ok {
		return nil, false
	}

	video, err := h.catalog.GetVideo(r.Context(), id)
	if errors.Is(err, db.ErrVideoNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("video_id", id).Msg("failed to load video")
		respondError(w, http.StatusInternalServerError, "Failed to load video")
		return nil, false
	}
	return video, true
}

func videoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid video ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondValidation(w http.ResponseWriter, err error) {
	var verr *validationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: verr.Message, Details: verr.Details})
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
