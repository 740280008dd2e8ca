package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/bobarin/clipforge/internal/pipeline"
	"github.com/rs/zerolog"
)

const (
	progressStarted  = 5
	progressFinished = 100

	messageStarted  = "Starting video generation..."
	messageFinished = "Video generation complete!"
)

// JobQueue is the slice of the job queue the worker drives.
type JobQueue interface {
	Claim(ctx context.Context, progress int, message string) (*models.Job, error)
	Update(ctx context.Context, jobID string, u models.JobUpdate) error
}

// Generator runs one job's request to a finished video.
type Generator interface {
	Run(ctx context.Context, jobID string, req models.VideoRequest, report pipeline.ProgressFunc) (*models.Video, error)
}

// Worker polls the queue and runs one job at a time.
type Worker struct {
	queue     JobQueue
	generator Generator
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(q JobQueue, g Generator, interval time.Duration, logger zerolog.Logger) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{
		queue:     q,
		generator: g,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Start launches the polling loop in the background. It is a no-op when
// the worker is already running.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done

	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
}

// Stop cancels the loop and waits for it to exit. A job in flight sees its
// context cancelled and is recorded as failed.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether Start has been called without a matching Stop.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// Run polls until ctx is cancelled. After a job finishes the queue is
// checked again right away; an empty queue waits one interval.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Dur("interval", w.interval).Msg("worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		processed := w.processNext(ctx)
		if ctx.Err() != nil {
			w.logger.Info().Msg("worker stopped")
			return nil
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// processNext claims and runs the oldest queued job. It reports whether a
// job was run.
func (w *Worker) processNext(ctx context.Context) bool {
	job, err := w.queue.Claim(ctx, progressStarted, messageStarted)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("failed to claim job")
		}
		return false
	}
	if job == nil {
		return false
	}

	w.process(ctx, job)
	return true
}

func (w *Worker) process(ctx context.Context, job *models.Job) {
	log := w.logger.With().Str("job_id", job.ID).Logger()
	log.Info().Str("title", job.Request.Title).Msg("processing job")
	start := w.now()

	video, err := w.runSafely(ctx, job, log)

	// The job record must be finalized even when ctx was cancelled mid-run.
	finalCtx := context.WithoutCancel(ctx)
	completed := w.now().UTC()

	if err != nil {
		status := models.JobStatusFailed
		message := "Error: " + err.Error()
		trace := errorTrace(err)
		update := models.JobUpdate{
			Status:      &status,
			Message:     &message,
			CompletedAt: &completed,
			Error:       &trace,
		}
		if uerr := w.queue.Update(finalCtx, job.ID, update); uerr != nil {
			log.Error().Err(uerr).Msg("failed to record job failure")
		}
		log.Error().Err(err).Dur("elapsed", w.now().Sub(start)).Msg("job failed")
		return
	}

	status := models.JobStatusCompleted
	progress := progressFinished
	message := messageFinished
	update := models.JobUpdate{
		Status:      &status,
		Progress:    &progress,
		Message:     &message,
		CompletedAt: &completed,
		Result:      video,
	}
	if uerr := w.queue.Update(finalCtx, job.ID, update); uerr != nil {
		log.Error().Err(uerr).Msg("failed to record job completion")
		return
	}
	log.Info().Int64("video_id", video.ID).Dur("elapsed", w.now().Sub(start)).Msg("job completed")
}

// runSafely runs the generator and turns a panic into an error.
func (w *Worker) runSafely(ctx context.Context, job *models.Job, log zerolog.Logger) (video *models.Video, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()

	report := func(progress int, message string) {
		u := models.JobUpdate{Progress: &progress, Message: &message}
		if err := w.queue.Update(ctx, job.ID, u); err != nil {
			log.Warn().Err(err).Int("progress", progress).Msg("failed to report progress")
		}
	}

	video, err = w.generator.Run(ctx, job.ID, job.Request, report)
	if err == nil && video == nil {
		err = fmt.Errorf("generator returned no video")
	}
	return video, err
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func errorTrace(err error) string {
	if pe, ok := err.(*panicError); ok {
		return pe.Error() + "\n" + string(pe.stack)
	}
	return err.Error()
}
