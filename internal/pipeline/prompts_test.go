package pipeline

import (
	"strings"
	"testing"

	"github.com/bobarin/clipforge/internal/models"
)

func TestImageCount(t *testing.T) {
	tests := []struct {
		words int
		fixed int
		want  int
	}{
		{0, 0, 3},
		{20, 0, 3},
		{50, 0, 4},
		{99, 0, 5},
		{100, 0, 5},
		{200, 0, 7},
		{300, 0, 10},
		{499, 0, 10},
		{500, 0, 12},
		{2000, 0, 12},
		{50, 6, 6},
	}
	for _, tt := range tests {
		if got := ImageCount(words(tt.words), tt.fixed); got != tt.want {
			t.Errorf("ImageCount(%d words, fixed %d) = %d, want %d", tt.words, tt.fixed, got, tt.want)
		}
	}
}

func TestFitPrompts(t *testing.T) {
	in := []models.ImagePrompt{{Prompt: "a"}, {Prompt: "b"}}

	padded := FitPrompts(in, 4)
	if len(padded) != 4 || padded[2].Prompt != "b" || padded[3].Prompt != "b" {
		t.Fatalf("unexpected padding: %+v", padded)
	}

	cut := FitPrompts(append(in, models.ImagePrompt{Prompt: "c"}), 2)
	if len(cut) != 2 || cut[1].Prompt != "b" {
		t.Fatalf("unexpected truncation: %+v", cut)
	}

	if FitPrompts(nil, 3) != nil {
		t.Fatal("no prompts in, no prompts out")
	}
}

func TestFallbackPromptsChunksScript(t *testing.T) {
	script := "one two three four five six seven"
	prompts := FallbackPrompts(script, "Anime", "", 3)

	if len(prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(prompts))
	}
	if !strings.HasPrefix(prompts[0].Prompt, "one two in Anime style") {
		t.Fatalf("unexpected first prompt %q", prompts[0].Prompt)
	}
	if !strings.HasPrefix(prompts[2].Prompt, "five six seven in Anime style") {
		t.Fatalf("last chunk should take the remainder, got %q", prompts[2].Prompt)
	}
	for _, p := range prompts {
		if !strings.HasSuffix(p.Prompt, "no text, no letters") {
			t.Fatalf("prompt missing text exclusion: %q", p.Prompt)
		}
		if !strings.Contains(p.NegativePrompt, "watermark") {
			t.Fatalf("negative prompt missing base exclusions: %q", p.NegativePrompt)
		}
	}
}

func TestFallbackPromptsShortScript(t *testing.T) {
	prompts := FallbackPrompts("lonely", "", "cars", 3)
	if len(prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(prompts))
	}
	if !strings.HasPrefix(prompts[0].Prompt, "lonely in cinematic style") {
		t.Fatalf("unexpected prompt %q", prompts[0].Prompt)
	}
	if !strings.HasPrefix(prompts[1].Prompt, "Scene 2") {
		t.Fatalf("empty chunk should get a scene label, got %q", prompts[1].Prompt)
	}
	if !strings.HasSuffix(prompts[0].NegativePrompt, "cars") {
		t.Fatalf("negative keywords should be appended: %q", prompts[0].NegativePrompt)
	}
}

func TestFallbackPromptsTruncatesLongChunks(t *testing.T) {
	script := strings.Repeat("abcdefghij ", 40)
	prompts := FallbackPrompts(script, "Watercolor", "", 1)
	chunk := strings.SplitN(prompts[0].Prompt, " in Watercolor style", 2)[0]
	if len([]rune(chunk)) != 100 {
		t.Fatalf("chunk should be cut to 100 runes, got %d", len([]rune(chunk)))
	}
}
