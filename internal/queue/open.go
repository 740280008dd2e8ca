package queue

import (
	"fmt"

	"github.com/bobarin/clipforge/internal/config"
)

// OpenStore builds the Store selected by JOB_STORE. Callers should Close
// the result when it implements io.Closer.
func OpenStore(cfg *config.Config) (Store, error) {
	switch cfg.JobStore {
	case "redis":
		store, err := NewRedisStore(cfg.RedisURL, cfg.RedisJobKey)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "file", "":
		return NewFileStore(cfg.JobQueueFile), nil
	default:
		return nil, fmt.Errorf("unsupported job store %q", cfg.JobStore)
	}
}
