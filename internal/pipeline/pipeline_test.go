package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/clipforge/internal/config"
	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/services"
	"github.com/bobarin/clipforge/internal/storage"
	"github.com/rs/zerolog"
)

type fakeNarrator struct {
	name   string
	err    error
	voices []string
}

func (f *fakeNarrator) Name() string { return f.name }

func (f *fakeNarrator) GenerateSpeech(ctx context.Context, text, voice string) (*services.TTSResponse, error) {
	f.voices = append(f.voices, voice)
	if f.err != nil {
		return nil, f.err
	}
	return &services.TTSResponse{AudioData: []byte("ID3-audio"), Format: "mp3"}, nil
}

type fakePrompts struct {
	prompts []models.ImagePrompt
	err     error
	got     services.PromptRequest
}

func (f *fakePrompts) GeneratePrompts(ctx context.Context, req services.PromptRequest) ([]models.ImagePrompt, error) {
	f.got = req
	return f.prompts, f.err
}

type fakeImages struct {
	name  string
	err   error
	calls int
}

func (f *fakeImages) Name() string { return f.name }

func (f *fakeImages) GenerateImage(ctx context.Context, prompt models.ImagePrompt, format string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG\r\n\x1a\nfake"), nil
}

type fakeComposer struct {
	duration float64
	err      error
	req      *services.ComposeRequest
}

func (f *fakeComposer) GetAudioDuration(ctx context.Context, path string) (float64, error) {
	return f.duration, nil
}

func (f *fakeComposer) Compose(ctx context.Context, req services.ComposeRequest) error {
	f.req = &req
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(req.OutputPath, []byte("mp4"), 0o644)
}

type fakeCatalog struct {
	videos []*models.Video
	err    error
}

func (f *fakeCatalog) AddVideo(ctx context.Context, v *models.Video) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.videos = append(f.videos, v)
	return int64(len(f.videos)), nil
}

type harness struct {
	pipeline  *Pipeline
	narrators []*fakeNarrator
	prompts   *fakePrompts
	images    []*fakeImages
	composer  *fakeComposer
	catalog   *fakeCatalog
	store     *storage.Storage
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	root := t.TempDir()
	store, err := storage.New(filepath.Join(root, "output"), filepath.Join(root, "tmp"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	h := &harness{
		narrators: []*fakeNarrator{{name: "elevenlabs"}, {name: "openai"}},
		prompts:   &fakePrompts{err: errors.New("prompt model offline")},
		images:    []*fakeImages{{name: "gemini"}, {name: "openai"}},
		composer:  &fakeComposer{duration: 12},
		catalog:   &fakeCatalog{},
		store:     store,
	}
	h.rebuild()
	return h
}

func (h *harness) rebuild() {
	narrators := make([]services.TTSService, 0, len(h.narrators))
	for _, n := range h.narrators {
		narrators = append(narrators, n)
	}
	images := make([]services.ImageProvider, 0, len(h.images))
	for _, i := range h.images {
		images = append(images, i)
	}

	h.pipeline = New(Deps{
		Narrators:      narrators,
		Prompts:        h.prompts,
		ImageProviders: images,
		Composer:       h.composer,
		Subtitles:      services.NewSubtitleGenerator(nil, zerolog.Nop()),
		Catalog:        h.catalog,
		Storage:        h.store,
	}, Settings{
		Formats:      config.DefaultVideoFormats(),
		Voices:       config.DefaultVoices(),
		DefaultVoice: "Zara",
	}, zerolog.Nop())
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

func TestRunEndToEndWithUnknownVoiceAndFailingImages(t *testing.T) {
	h := newHarness(t)
	for _, img := range h.images {
		img.err = errors.New("quota exceeded")
	}
	h.rebuild()

	var checkpoints []int
	req := models.VideoRequest{
		Title:  "Tides of Time",
		Format: "16:9",
		Voice:  "Nonexistent",
		Script: words(50),
	}
	video, err := h.pipeline.Run(context.Background(), "job-12345678-abcd", req, func(p int, _ string) {
		checkpoints = append(checkpoints, p)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if video.Voice != "Zara" {
		t.Fatalf("expected default voice Zara, got %q", video.Voice)
	}
	if got := h.narrators[0].voices; len(got) != 1 || got[0] != "Zara" {
		t.Fatalf("narrator should be asked for Zara, got %v", got)
	}
	if video.ID != 1 || video.Status != models.VideoStatusCompleted {
		t.Fatalf("unexpected record: id=%d status=%q", video.ID, video.Status)
	}
	if video.Category != models.DefaultCategory {
		t.Fatalf("expected default category, got %q", video.Category)
	}
	if !strings.HasSuffix(video.Path, "tides-of-time-job-1234.mp4") {
		t.Fatalf("unexpected video path %q", video.Path)
	}
	if video.Duration != 12 {
		t.Fatalf("expected duration 12, got %v", video.Duration)
	}

	req2 := h.composer.req
	if req2 == nil {
		t.Fatal("composer was not called")
	}
	if req2.Width != 1920 || req2.Height != 1080 {
		t.Fatalf("expected 1920x1080, got %dx%d", req2.Width, req2.Height)
	}
	if len(req2.ImagePaths) != 4 {
		t.Fatalf("expected 4 images for 50 words, got %d", len(req2.ImagePaths))
	}
	for _, p := range req2.ImagePaths {
		if !strings.Contains(filepath.Base(p), "placeholder_") {
			t.Fatalf("expected placeholder image, got %q", p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("placeholder missing: %v", err)
		}
	}
	if len(req2.Segments) == 0 || req2.Segments[len(req2.Segments)-1].End != 12 {
		t.Fatalf("subtitles should end at narration length: %+v", req2.Segments)
	}
	if _, err := os.Stat(strings.TrimSuffix(video.Path, ".mp4") + ".srt"); err != nil {
		t.Fatalf("expected SRT sidecar: %v", err)
	}
	if _, err := os.Stat(req2.WorkDir); !os.IsNotExist(err) {
		t.Fatalf("scratch dir should be removed, stat err=%v", err)
	}

	want := []int{ProgressNarration, ProgressPrompts, ProgressImages, ProgressComposition, ProgressPersistence}
	if len(checkpoints) != len(want) {
		t.Fatalf("checkpoints = %v, want %v", checkpoints, want)
	}
	for i := range want {
		if checkpoints[i] != want[i] {
			t.Fatalf("checkpoints = %v, want %v", checkpoints, want)
		}
	}
}

func TestRunNarrationFallsBackToNextProvider(t *testing.T) {
	h := newHarness(t)
	h.narrators[0].err = errors.New("401 unauthorized")
	h.rebuild()

	_, err := h.pipeline.Run(context.Background(), "job-a", models.VideoRequest{Script: words(10), Voice: "Adam"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(filepath.Base(h.composer.req.AudioPath), "narration_adam_openai_") {
		t.Fatalf("audio should come from the second provider, got %q", h.composer.req.AudioPath)
	}
}

func TestRunAllNarrationFailsStopsPipeline(t *testing.T) {
	h := newHarness(t)
	for _, n := range h.narrators {
		n.err = errors.New("down")
	}
	h.rebuild()

	_, err := h.pipeline.Run(context.Background(), "job-b", models.VideoRequest{Script: words(10)}, nil)
	if !errors.Is(err, ErrNoNarration) {
		t.Fatalf("expected ErrNoNarration, got %v", err)
	}
	if h.composer.req != nil || len(h.catalog.videos) != 0 {
		t.Fatal("later stages must not run after narration fails")
	}
	for _, img := range h.images {
		if img.calls != 0 {
			t.Fatal("image providers must not be called after narration fails")
		}
	}
}

func TestRunUsesFirstWorkingImageProvider(t *testing.T) {
	h := newHarness(t)
	h.images[0].err = errors.New("safety filter")
	h.rebuild()

	_, err := h.pipeline.Run(context.Background(), "job-c", models.VideoRequest{Script: words(10)}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	n := len(h.composer.req.ImagePaths)
	if h.images[0].calls != n || h.images[1].calls != n {
		t.Fatalf("expected each provider tried %d times, got %d and %d", n, h.images[0].calls, h.images[1].calls)
	}
	for _, p := range h.composer.req.ImagePaths {
		if !strings.HasPrefix(filepath.Base(p), "image_") || filepath.Ext(p) != ".png" {
			t.Fatalf("unexpected image path %q", p)
		}
	}
}

func TestRunPadsPromptsFromProvider(t *testing.T) {
	h := newHarness(t)
	h.prompts.err = nil
	h.prompts.prompts = []models.ImagePrompt{{Prompt: "a"}, {Prompt: "b"}}
	h.pipeline.settings.ImageCount = 5

	_, err := h.pipeline.Run(context.Background(), "job-d", models.VideoRequest{Script: words(10), Style: "Anime"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if h.prompts.got.Count != 5 || h.prompts.got.Style != "Anime" {
		t.Fatalf("unexpected prompt request %+v", h.prompts.got)
	}
	if len(h.composer.req.ImagePaths) != 5 {
		t.Fatalf("expected 5 images, got %d", len(h.composer.req.ImagePaths))
	}
}

func TestRunCompositionFailure(t *testing.T) {
	h := newHarness(t)
	h.composer.err = errors.New("ffmpeg exploded")

	_, err := h.pipeline.Run(context.Background(), "job-e", models.VideoRequest{Script: words(10)}, nil)
	if err == nil || !strings.Contains(err.Error(), "composition") {
		t.Fatalf("expected composition error, got %v", err)
	}
	if len(h.catalog.videos) != 0 {
		t.Fatal("failed composition must not create a record")
	}
}

func TestRunCatalogFailure(t *testing.T) {
	h := newHarness(t)
	h.catalog.err = errors.New("connection refused")

	_, err := h.pipeline.Run(context.Background(), "job-f", models.VideoRequest{Script: words(10)}, nil)
	if err == nil || !strings.Contains(err.Error(), "persistence") {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	h := newHarness(t)

	_, err := h.pipeline.Run(context.Background(), "job-g", models.VideoRequest{Script: words(10), Format: "4:3"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if len(h.narrators[0].voices) != 0 {
		t.Fatal("narration must not start for an unknown format")
	}
}
