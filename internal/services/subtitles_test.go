package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/rs/zerolog"
)

type stubSegmenter struct {
	lines []string
	err   error
}

func (s stubSegmenter) SegmentScript(ctx context.Context, script string) ([]string, error) {
	return s.lines, s.err
}

func assertContiguous(t *testing.T, segs []models.SubtitleSegment, total float64) {
	t.Helper()
	if len(segs) == 0 {
		t.Fatalf("expected segments")
	}
	if segs[0].Start != 0 {
		t.Fatalf("first segment starts at %v, want 0", segs[0].Start)
	}
	for i := 0; i < len(segs)-1; i++ {
		if segs[i].End != segs[i+1].Start {
			t.Fatalf("gap between segment %d (end %v) and %d (start %v)", i, segs[i].End, i+1, segs[i+1].Start)
		}
		if segs[i].End < segs[i].Start {
			t.Fatalf("segment %d ends before it starts", i)
		}
	}
	if last := segs[len(segs)-1].End; last != total {
		t.Fatalf("last segment ends at %v, want %v", last, total)
	}
}

func TestFallbackSegmentationCoversScript(t *testing.T) {
	scripts := []string{
		"one",
		"one two three four five six",
		"one two three four five six seven",
		strings.Repeat("word ", 53),
	}
	durations := []float64{0.5, 3, 12.34, 60, 400}

	gen := NewSubtitleGenerator(nil, zerolog.Nop())
	for _, script := range scripts {
		for _, total := range durations {
			segs := gen.Generate(context.Background(), script, total)
			assertContiguous(t, segs, total)

			var texts []string
			for _, s := range segs {
				texts = append(texts, s.Text)
			}
			if got, want := strings.Join(texts, " "), strings.Join(strings.Fields(script), " "); got != want {
				t.Fatalf("segments do not reconstruct script:\n got %q\nwant %q", got, want)
			}
		}
	}
}

func TestGenerateUsesAISegments(t *testing.T) {
	script := "The sun rose slowly. Birds began to sing over the quiet valley."
	ai := stubSegmenter{lines: []string{"The sun rose slowly.", "Birds began to sing over the quiet valley."}}

	segs := NewSubtitleGenerator(ai, zerolog.Nop()).Generate(context.Background(), script, 10)
	if len(segs) != 2 {
		t.Fatalf("expected 2 AI segments, got %d", len(segs))
	}
	if segs[0].Text != "The sun rose slowly." {
		t.Errorf("unexpected first segment %q", segs[0].Text)
	}
	assertContiguous(t, segs, 10)
}

func TestGenerateFallsBackWhenAIFails(t *testing.T) {
	script := "a b c d e f g h"

	tests := []struct {
		name string
		ai   stubSegmenter
	}{
		{name: "error", ai: stubSegmenter{err: errors.New("boom")}},
		{name: "dropped words", ai: stubSegmenter{lines: []string{"a b c"}}},
		{name: "invented words", ai: stubSegmenter{lines: []string{"a b c d e f g h i"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := NewSubtitleGenerator(tt.ai, zerolog.Nop()).Generate(context.Background(), script, 8)
			if len(segs) != 2 {
				t.Fatalf("expected 2 fallback segments, got %d", len(segs))
			}
			if segs[0].Text != "a b c d e f" || segs[1].Text != "g h" {
				t.Fatalf("unexpected fallback segments %+v", segs)
			}
		})
	}
}

func TestGenerateEmptyInput(t *testing.T) {
	gen := NewSubtitleGenerator(nil, zerolog.Nop())
	if segs := gen.Generate(context.Background(), "   ", 10); segs != nil {
		t.Fatalf("expected nil for empty script, got %+v", segs)
	}
	if segs := gen.Generate(context.Background(), "hello", 0); segs != nil {
		t.Fatalf("expected nil for zero duration, got %+v", segs)
	}
}

func TestCalculateTimingsClamps(t *testing.T) {
	// 1 word out of 101 over 10s would be ~0.1s; the minimum is 0.8s.
	lines := []string{"short", strings.TrimSpace(strings.Repeat("w ", 100))}
	segs := CalculateTimings(lines, 10)

	if got := segs[0].End - segs[0].Start; got != minSegmentSeconds {
		t.Fatalf("expected first segment clamped to %v, got %v", minSegmentSeconds, got)
	}
	// The long line is clamped to 5s, then stretched to the end.
	if segs[1].End != 10 {
		t.Fatalf("expected last segment to end at 10, got %v", segs[1].End)
	}
}

func TestFormatTimes(t *testing.T) {
	if got := formatSRTTime(3725.5); got != "01:02:05,500" {
		t.Errorf("formatSRTTime: got %s", got)
	}
	if got := formatASSTime(61.257); got != "0:01:01.26" {
		t.Errorf("formatASSTime: got %s", got)
	}
	if got := formatSRTTime(-1); got != "00:00:00,000" {
		t.Errorf("formatSRTTime negative: got %s", got)
	}
}

func TestWriteCaptionFiles(t *testing.T) {
	dir := t.TempDir()
	segs := []models.SubtitleSegment{
		{Text: "Hello {world}", Start: 0, End: 1.5},
		{Text: "Goodbye", Start: 1.5, End: 3},
	}

	assPath := filepath.Join(dir, "subs.ass")
	if err := WriteASS(segs, 1920, 1080, assPath); err != nil {
		t.Fatalf("WriteASS failed: %v", err)
	}
	ass, _ := os.ReadFile(assPath)
	if !strings.Contains(string(ass), "PlayResX: 1920") {
		t.Errorf("expected PlayResX in ASS header")
	}
	if !strings.Contains(string(ass), "Dialogue: 0,0:00:00.00,0:00:01.50,Default,,0,0,0,,Hello (world)") {
		t.Errorf("unexpected ASS dialogue:\n%s", ass)
	}

	srtPath := filepath.Join(dir, "subs.srt")
	if err := WriteSRT(segs, srtPath); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}
	srt, _ := os.ReadFile(srtPath)
	if !strings.HasPrefix(string(srt), "1\n00:00:00,000 --> 00:00:01,500\nHello {world}\n\n2\n") {
		t.Errorf("unexpected SRT:\n%s", srt)
	}

	if err := WriteASS(nil, 1920, 1080, assPath); err == nil {
		t.Errorf("expected error for empty segments")
	}
}
