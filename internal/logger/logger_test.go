package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewRespectsExplicitLevel(t *testing.T) {
	log := New("production", "warn")
	if log.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", log.GetLevel())
	}
}

func TestNewDefaultsByEnvironment(t *testing.T) {
	if got := New("development", "").GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("development: expected debug, got %s", got)
	}
	if got := New("production", "bogus").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("production: expected info, got %s", got)
	}
}

func TestComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	comp := Component(base, "worker")
	comp.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if line["component"] != "worker" {
		t.Fatalf("expected component=worker, got %v", line["component"])
	}
}
