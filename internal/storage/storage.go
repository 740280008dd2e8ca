package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind selects the output subdirectory an artifact belongs to.
type Kind string

const (
	KindAudio  Kind = "audio"
	KindImages Kind = "images"
	KindVideos Kind = "videos"
)

var ErrOutsideRoot = errors.New("storage: path is outside the output directory")

// Storage lays generated artifacts out on the local filesystem:
// <output>/{audio,images,videos} for results and <temp> for scratch files.
type Storage struct {
	outputDir string
	tempDir   string
}

// New creates the directory layout under outputDir and tempDir.
func New(outputDir, tempDir string) (*Storage, error) {
	outputDir = strings.TrimSpace(outputDir)
	tempDir = strings.TrimSpace(tempDir)
	if outputDir == "" || tempDir == "" {
		return nil, errors.New("storage: output and temp directories are required")
	}

	dirs := []string{
		outputDir,
		tempDir,
		filepath.Join(outputDir, string(KindAudio)),
		filepath.Join(outputDir, string(KindImages)),
		filepath.Join(outputDir, string(KindVideos)),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: ensure %s: %w", dir, err)
		}
	}

	return &Storage{outputDir: outputDir, tempDir: tempDir}, nil
}

func (s *Storage) OutputDir() string { return s.outputDir }
func (s *Storage) TempDir() string   { return s.tempDir }

// Path returns where an artifact called name of the given kind lives.
func (s *Storage) Path(kind Kind, name string) (string, error) {
	cleanName, err := sanitizeKey(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.outputDir, string(kind), filepath.FromSlash(cleanName)), nil
}

// Write persists data as an artifact and returns its full path.
func (s *Storage) Write(ctx context.Context, kind Kind, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullPath, err := s.Path(kind, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return fullPath, nil
}

// ScratchDir creates a fresh directory under the temp root for one job.
func (s *Storage) ScratchDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp(s.tempDir, prefix+"-*")
	if err != nil {
		return "", fmt.Errorf("storage: create scratch dir: %w", err)
	}
	return dir, nil
}

// Remove deletes an artifact. Paths outside the output directory are refused
// and a file that is already gone is not an error.
func (s *Storage) Remove(path string) error {
	if path == "" {
		return nil
	}

	target, err := s.Resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

// Resolve returns the absolute form of an artifact path, or ErrOutsideRoot
// when it does not lie below the output directory.
func (s *Storage) Resolve(path string) (string, error) {
	root, err := filepath.Abs(s.outputDir)
	if err != nil {
		return "", fmt.Errorf("storage: resolve root: %w", err)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return target, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
