package services

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Subtitle segmentation and caption files
//
// The script is split into short caption lines (AI first, fixed word chunks
// as fallback), each line gets a share of the narration proportional to its
// word count, and the result is written as ASS for burn-in and SRT as a
// sidecar.
// ---------------------------------------------------------------------------

const (
	fallbackWordsPerSegment = 6

	minSegmentSeconds = 0.8
	maxSegmentSeconds = 5.0

	subtitleFontName = "Noto Sans"

	// ASS colors are in &HAABBGGRR format (hex, note: BGR not RGB)
	assColorWhite     = "&H00FFFFFF"
	assColorBlack     = "&H00000000"
	assColorSemiBlack = "&H80000000"
)

// ScriptSegmenter splits a script into caption-sized lines.
type ScriptSegmenter interface {
	SegmentScript(ctx context.Context, script string) ([]string, error)
}

// SubtitleGenerator turns a script and a narration length into timed segments.
type SubtitleGenerator struct {
	segmenter ScriptSegmenter // nil = always use the word-chunk fallback
	logger    zerolog.Logger
}

func NewSubtitleGenerator(segmenter ScriptSegmenter, logger zerolog.Logger) *SubtitleGenerator {
	return &SubtitleGenerator{segmenter: segmenter, logger: logger}
}

// Generate returns contiguous segments covering [0, total]. An AI split that
// loses or invents words is discarded in favor of the fallback.
func (g *SubtitleGenerator) Generate(ctx context.Context, script string, total float64) []models.SubtitleSegment {
	words := strings.Fields(script)
	if len(words) == 0 || total <= 0 {
		return nil
	}

	var lines []string
	if g.segmenter != nil {
		segs, err := g.segmenter.SegmentScript(ctx, script)
		switch {
		case err != nil:
			g.logger.Warn().Err(err).Msg("AI subtitle segmentation failed, using word chunks")
		case !sameWords(segs, words):
			g.logger.Warn().Int("segments", len(segs)).Msg("AI subtitle segmentation changed the script, using word chunks")
		default:
			lines = segs
		}
	}

	if lines == nil {
		lines = FallbackSegments(script, fallbackWordsPerSegment)
	}

	return CalculateTimings(lines, total)
}

// FallbackSegments chunks the script into lines of wordsPer words.
func FallbackSegments(script string, wordsPer int) []string {
	if wordsPer <= 0 {
		wordsPer = fallbackWordsPerSegment
	}

	words := strings.Fields(script)
	var lines []string
	for i := 0; i < len(words); i += wordsPer {
		end := i + wordsPer
		if end > len(words) {
			end = len(words)
		}
		lines = append(lines, strings.Join(words[i:end], " "))
	}
	return lines
}

// CalculateTimings allots each line a share of total proportional to its
// word count, clamped to [0.8s, 5s]. Each segment starts where the previous
// one ended and the last one always ends at total.
func CalculateTimings(lines []string, total float64) []models.SubtitleSegment {
	if len(lines) == 0 || total <= 0 {
		return nil
	}

	counts := make([]int, len(lines))
	totalWords := 0
	for i, line := range lines {
		counts[i] = len(strings.Fields(line))
		totalWords += counts[i]
	}
	if totalWords == 0 {
		return nil
	}

	segments := make([]models.SubtitleSegment, 0, len(lines))
	current := 0.0
	for i, line := range lines {
		duration := float64(counts[i]) / float64(totalWords) * total
		duration = math.Max(minSegmentSeconds, math.Min(maxSegmentSeconds, duration))

		end := math.Min(current+duration, total)
		segments = append(segments, models.SubtitleSegment{
			Text:  strings.TrimSpace(line),
			Start: current,
			End:   end,
		})
		current = end
	}

	segments[len(segments)-1].End = total
	return segments
}

// sameWords reports whether lines hold exactly the given words, ignoring
// case and punctuation.
func sameWords(lines []string, words []string) bool {
	got := normalizeWords(strings.Join(lines, " "))
	want := normalizeWords(strings.Join(words, " "))
	if len(got) != len(want) || len(got) == 0 {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func normalizeWords(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		}))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// WriteASS writes segments as an ASS file sized for a width x height frame.
func WriteASS(segments []models.SubtitleSegment, width, height int, outputPath string) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments to write")
	}

	short := width
	if height < short {
		short = height
	}
	fontSize := short / 18
	outline := fontSize / 16
	if outline < 2 {
		outline = 2
	}
	marginV := height / 12

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", width)
	fmt.Fprintf(&sb, "PlayResY: %d\n", height)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb,
		"Style: Default,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,0,0,1,%d,1,2,%d,%d,%d,1\n",
		subtitleFontName, fontSize,
		assColorWhite,
		assColorWhite,
		assColorBlack,
		assColorSemiBlack,
		outline,
		width/20, width/20,
		marginV,
	)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, seg := range segments {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(seg.Start), formatASSTime(seg.End), escapeASSText(seg.Text))
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write ASS subtitle file: %w", err)
	}
	return nil
}

// WriteSRT writes segments as a numbered SRT file.
func WriteSRT(segments []models.SubtitleSegment, outputPath string) error {
	var sb strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, formatSRTTime(seg.Start), formatSRTTime(seg.End), seg.Text)
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write SRT file: %w", err)
	}
	return nil
}

// escapeASSText keeps override braces and line breaks from being interpreted.
func escapeASSText(text string) string {
	text = strings.ReplaceAll(text, "{", "(")
	text = strings.ReplaceAll(text, "}", ")")
	text = strings.ReplaceAll(text, "\r\n", "\\N")
	return strings.ReplaceAll(text, "\n", "\\N")
}

// formatASSTime converts seconds to ASS timestamp format: H:MM:SS.CC (centiseconds)
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int(math.Round(seconds * 100))
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, (cs/6000)%60, (cs/100)%60, cs%100)
}

// formatSRTTime converts seconds to SRT timestamp format: HH:MM:SS,mmm
func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(math.Round(seconds * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, (ms/60000)%60, (ms/1000)%60, ms%1000)
}
