package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bobarin/clipforge/internal/models"
)

// State is the whole persisted queue document: every job record plus the
// submission-ordered index of job ids.
type State struct {
	Jobs  map[string]*models.Job `json:"jobs"`
	Queue []string               `json:"queue"`
}

func newState() *State {
	return &State{Jobs: map[string]*models.Job{}, Queue: []string{}}
}

// normalize repairs a decoded document so callers never see nil collections.
func (s *State) normalize() *State {
	if s.Jobs == nil {
		s.Jobs = map[string]*models.Job{}
	}
	if s.Queue == nil {
		s.Queue = []string{}
	}
	return s
}

// Store persists the queue document. Each call reads or replaces the whole document.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// FileStore keeps the queue document in a single JSON file on disk.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document, returning an empty state when the file does not exist yet.
func (s *FileStore) Load(ctx context.Context) (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newState(), nil
		}
		return nil, fmt.Errorf("failed to read job queue file: %w", err)
	}

	if len(data) == 0 {
		return newState(), nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode job queue file: %w", err)
	}

	return state.normalize(), nil
}

// Save writes the document to a temp file in the same directory and renames
// it over the old one, so a crash never leaves a half-written file behind.
func (s *FileStore) Save(ctx context.Context, state *State) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create job queue dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job queue: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".job_queue-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write job queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace job queue file: %w", err)
	}

	return nil
}
