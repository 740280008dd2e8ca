package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrJobNotFound = errors.New("job not found")

// Queue is the FIFO job queue over a Store. Every mutation is a full
// load-modify-save cycle, serialized within this process by mu. Separate
// processes sharing one store are not coordinated.
type Queue struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time

	mu sync.Mutex
}

func New(store Store, logger zerolog.Logger) *Queue {
	return &Queue{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// mutate runs fn against the freshly loaded state and persists the result.
// Nothing is written when fn returns an error.
func (q *Queue) mutate(ctx context.Context, fn func(*State) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, err := q.store.Load(ctx)
	if err != nil {
		return err
	}

	if err := fn(state); err != nil {
		return err
	}

	return q.store.Save(ctx, state)
}

// Add creates a queued job for req and appends it to the queue index.
func (q *Queue) Add(ctx context.Context, req models.VideoRequest) (string, error) {
	job := &models.Job{
		ID:        uuid.NewString(),
		Status:    models.JobStatusQueued,
		Progress:  0,
		Message:   "Job queued",
		Request:   req,
		CreatedAt: q.now().UTC(),
	}

	err := q.mutate(ctx, func(s *State) error {
		s.Jobs[job.ID] = job
		s.Queue = append(s.Queue, job.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to add job: %w", err)
	}

	q.logger.Info().Str("job_id", job.ID).Str("title", req.Title).Msg("job queued")
	return job.ID, nil
}

// NextQueued returns the oldest job still in queued status, or nil.
func (q *Queue) NextQueued(ctx context.Context) (*models.Job, error) {
	state, err := q.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	for _, id := range state.Queue {
		job, ok := state.Jobs[id]
		if ok && job.Status == models.JobStatusQueued {
			return job, nil
		}
	}

	return nil, nil
}

// Claim moves the oldest queued job to processing in a single save and
// returns it, or nil when nothing is waiting.
func (q *Queue) Claim(ctx context.Context, progress int, message string) (*models.Job, error) {
	var claimed *models.Job

	err := q.mutate(ctx, func(s *State) error {
		for _, id := range s.Queue {
			job, ok := s.Jobs[id]
			if !ok || job.Status != models.JobStatusQueued {
				continue
			}
			started := q.now().UTC()
			job.Status = models.JobStatusProcessing
			job.Progress = progress
			job.Message = message
			job.StartedAt = &started
			claimed = job
			return nil
		}
		return errNothingQueued
	})
	if errors.Is(err, errNothingQueued) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return claimed, nil
}

var errNothingQueued = errors.New("nothing queued")

// Update merges the non-nil fields of u into the named job.
func (q *Queue) Update(ctx context.Context, jobID string, u models.JobUpdate) error {
	err := q.mutate(ctx, func(s *State) error {
		job, ok := s.Jobs[jobID]
		if !ok {
			return fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
		}
		u.Apply(job)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// Get returns the job or nil when the id is unknown.
func (q *Queue) Get(ctx context.Context, jobID string) (*models.Job, error) {
	state, err := q.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	return state.Jobs[jobID], nil
}

// Position is the number of queued jobs ahead of jobID in submission order,
// or -1 when the job is not currently queued.
func (q *Queue) Position(ctx context.Context, jobID string) (int, error) {
	state, err := q.store.Load(ctx)
	if err != nil {
		return -1, fmt.Errorf("failed to load queue: %w", err)
	}
	return position(state, jobID), nil
}

func position(state *State, jobID string) int {
	job, ok := state.Jobs[jobID]
	if !ok || job.Status != models.JobStatusQueued {
		return -1
	}

	ahead := 0
	for _, id := range state.Queue {
		if id == jobID {
			return ahead
		}
		if j, ok := state.Jobs[id]; ok && j.Status == models.JobStatusQueued {
			ahead++
		}
	}
	return -1
}

// ListByStatus returns matching jobs in queue index order.
func (q *Queue) ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	state, err := q.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	return byStatus(state, status), nil
}

func byStatus(state *State, status models.JobStatus) []*models.Job {
	jobs := []*models.Job{}
	for _, id := range state.Queue {
		if job, ok := state.Jobs[id]; ok && job.Status == status {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Snapshot returns the queued and processing jobs from a single read.
func (q *Queue) Snapshot(ctx context.Context) (*models.QueueSnapshot, error) {
	state, err := q.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	return &models.QueueSnapshot{
		Queued:     byStatus(state, models.JobStatusQueued),
		Processing: byStatus(state, models.JobStatusProcessing),
	}, nil
}

// All returns every job in queue index order.
func (q *Queue) All(ctx context.Context) ([]*models.Job, error) {
	state, err := q.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	jobs := make([]*models.Job, 0, len(state.Jobs))
	for _, id := range state.Queue {
		if job, ok := state.Jobs[id]; ok {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// Cleanup removes completed and failed jobs that finished before cutoff.
func (q *Queue) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0

	err := q.mutate(ctx, func(s *State) error {
		for id, job := range s.Jobs {
			if !job.Status.Terminal() || job.CompletedAt == nil {
				continue
			}
			if job.CompletedAt.Before(cutoff) {
				delete(s.Jobs, id)
				removed++
			}
		}

		kept := s.Queue[:0]
		for _, id := range s.Queue {
			if _, ok := s.Jobs[id]; ok {
				kept = append(kept, id)
			}
		}
		s.Queue = kept
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up jobs: %w", err)
	}

	if removed > 0 {
		q.logger.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("old jobs cleaned up")
	}
	return removed, nil
}

// CleanupOlderThan removes terminal jobs finished more than days ago.
func (q *Queue) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := q.now().Add(-time.Duration(days) * 24 * time.Hour)
	return q.Cleanup(ctx, cutoff)
}
