package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bobarin/clipforge/internal/config"
	"github.com/bobarin/clipforge/internal/models"
	"github.com/rs/zerolog"
)

func newTestQueue(t *testing.T) (*Queue, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "outputs", "job_queue.json"))
	return New(store, zerolog.Nop()), store
}

func mustAdd(t *testing.T, q *Queue, title string) string {
	t.Helper()
	id, err := q.Add(context.Background(), models.VideoRequest{Title: title, Script: "a b c"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return id
}

func setStatus(t *testing.T, q *Queue, id string, status models.JobStatus) {
	t.Helper()
	if err := q.Update(context.Background(), id, models.JobUpdate{Status: &status}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestAddCreatesQueuedJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		id := mustAdd(t, q, "video")
		if seen[id] {
			t.Fatalf("duplicate job id %s", id)
		}
		seen[id] = true

		job, err := q.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if job == nil {
			t.Fatalf("expected job %s to exist", id)
		}
		if job.Status != models.JobStatusQueued || job.Progress != 0 {
			t.Fatalf("expected queued/0, got %s/%d", job.Status, job.Progress)
		}
		if job.Message != "Job queued" {
			t.Errorf("unexpected message %q", job.Message)
		}
	}
}

func TestNextQueuedIsOldestQueued(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	first := mustAdd(t, q, "first")
	second := mustAdd(t, q, "second")

	next, err := q.NextQueued(ctx)
	if err != nil {
		t.Fatalf("NextQueued failed: %v", err)
	}
	if next == nil || next.ID != first {
		t.Fatalf("expected %s, got %+v", first, next)
	}

	// NextQueued must not claim the job.
	again, _ := q.NextQueued(ctx)
	if again == nil || again.ID != first {
		t.Fatalf("expected NextQueued to be read-only")
	}

	setStatus(t, q, first, models.JobStatusProcessing)

	next, _ = q.NextQueued(ctx)
	if next == nil || next.ID != second {
		t.Fatalf("expected %s after claiming first, got %+v", second, next)
	}

	setStatus(t, q, second, models.JobStatusProcessing)
	next, _ = q.NextQueued(ctx)
	if next != nil {
		t.Fatalf("expected no queued job, got %s", next.ID)
	}
}

func TestUpdateUnknownJob(t *testing.T) {
	q, _ := newTestQueue(t)

	msg := "x"
	err := q.Update(context.Background(), "missing", models.JobUpdate{Message: &msg})
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestGetUnknownJob(t *testing.T) {
	q, _ := newTestQueue(t)

	job, err := q.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}
}

func TestPositionMonotonic(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a := mustAdd(t, q, "a")
	b := mustAdd(t, q, "b")
	c := mustAdd(t, q, "c")

	pos, _ := q.Position(ctx, c)
	if pos != 2 {
		t.Fatalf("expected position 2, got %d", pos)
	}

	last := pos
	for _, id := range []string{a, b} {
		setStatus(t, q, id, models.JobStatusProcessing)
		setStatus(t, q, id, models.JobStatusFailed)

		pos, _ = q.Position(ctx, c)
		if pos > last {
			t.Fatalf("position increased from %d to %d", last, pos)
		}
		last = pos
	}
	if last != 0 {
		t.Fatalf("expected position 0 once all earlier jobs finished, got %d", last)
	}

	setStatus(t, q, c, models.JobStatusProcessing)
	if pos, _ := q.Position(ctx, c); pos != -1 {
		t.Fatalf("expected -1 for a processing job, got %d", pos)
	}
	if pos, _ := q.Position(ctx, "missing"); pos != -1 {
		t.Fatalf("expected -1 for an unknown job, got %d", pos)
	}
}

func TestClaimRemovesFromQueuedView(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id := mustAdd(t, q, "a")
	other := mustAdd(t, q, "b")
	setStatus(t, q, id, models.JobStatusProcessing)

	queued, err := q.ListByStatus(ctx, models.JobStatusQueued)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(queued) != 1 || queued[0].ID != other {
		t.Fatalf("expected only %s queued, got %d jobs", other, len(queued))
	}

	snap, err := q.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Processing) != 1 || snap.Processing[0].ID != id {
		t.Fatalf("expected %s processing, got %+v", id, snap.Processing)
	}
	if len(snap.Queued) != 1 {
		t.Fatalf("expected 1 queued job in snapshot, got %d", len(snap.Queued))
	}
}

func TestClaimTakesOldestQueued(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	first := mustAdd(t, q, "a")
	second := mustAdd(t, q, "b")

	job, err := q.Claim(ctx, 5, "Starting video generation...")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if job == nil || job.ID != first {
		t.Fatalf("expected %s claimed, got %+v", first, job)
	}

	stored, _ := q.Get(ctx, first)
	if stored.Status != models.JobStatusProcessing || stored.Progress != 5 || stored.StartedAt == nil {
		t.Fatalf("claim not persisted: %+v", stored)
	}

	job, _ = q.Claim(ctx, 5, "")
	if job == nil || job.ID != second {
		t.Fatalf("expected %s claimed next, got %+v", second, job)
	}

	job, err = q.Claim(ctx, 5, "")
	if err != nil || job != nil {
		t.Fatalf("expected nothing to claim, got %+v, %v", job, err)
	}
}

func TestCleanup(t *testing.T) {
	q, store := newTestQueue(t)
	ctx := context.Background()

	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-time.Hour)
	recent := cutoff.Add(time.Hour)

	oldDone := mustAdd(t, q, "old done")
	oldFailed := mustAdd(t, q, "old failed")
	recentDone := mustAdd(t, q, "recent done")
	stillQueued := mustAdd(t, q, "queued")
	running := mustAdd(t, q, "running")

	finish := func(id string, status models.JobStatus, at time.Time) {
		if err := q.Update(ctx, id, models.JobUpdate{Status: &status, CompletedAt: &at}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	finish(oldDone, models.JobStatusCompleted, old)
	finish(oldFailed, models.JobStatusFailed, old)
	finish(recentDone, models.JobStatusCompleted, recent)
	setStatus(t, q, running, models.JobStatusProcessing)

	removed, err := q.Cleanup(ctx, cutoff)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for _, id := range []string{oldDone, oldFailed} {
		if _, ok := state.Jobs[id]; ok {
			t.Errorf("expected %s to be removed", id)
		}
	}
	for _, id := range []string{recentDone, stillQueued, running} {
		if _, ok := state.Jobs[id]; !ok {
			t.Errorf("expected %s to survive", id)
		}
	}

	want := []string{recentDone, stillQueued, running}
	if len(state.Queue) != len(want) {
		t.Fatalf("expected queue %v, got %v", want, state.Queue)
	}
	for i, id := range want {
		if state.Queue[i] != id {
			t.Fatalf("expected queue %v, got %v", want, state.Queue)
		}
	}
}

func TestCleanupOlderThanUsesClock(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	id := mustAdd(t, q, "done")
	status := models.JobStatusCompleted
	done := now.Add(-8 * 24 * time.Hour)
	if err := q.Update(ctx, id, models.JobUpdate{Status: &status, CompletedAt: &done}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	removed, err := q.CleanupOlderThan(ctx, 7)
	if err != nil {
		t.Fatalf("CleanupOlderThan failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Add(ctx, models.VideoRequest{Script: "x"}); err != nil {
				t.Errorf("Add failed: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := q.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != n {
		t.Fatalf("expected %d jobs, got %d", n, len(all))
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	q := New(NewFileStore(path), zerolog.Nop())
	id := mustAdd(t, q, "persisted")

	reopened := New(NewFileStore(path), zerolog.Nop())
	job, err := reopened.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job == nil || job.Request.Title != "persisted" {
		t.Fatalf("expected persisted job, got %+v", job)
	}
}

func TestOpenStoreSelectsBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.json")
	store, err := OpenStore(&config.Config{JobStore: "file", JobQueueFile: path})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	fs, ok := store.(*FileStore)
	if !ok || fs.Path() != path {
		t.Fatalf("expected file store at %s, got %#v", path, store)
	}

	if _, err := OpenStore(&config.Config{JobStore: "etcd"}); err == nil {
		t.Fatal("expected error for unknown store")
	}
}
