package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bobarin/clipforge/internal/models"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Motion effect types. Each clip gets one, drawn uniformly at random.
// ---------------------------------------------------------------------------

// ClipEffect defines the type of Ken Burns / motion effect applied to a still image
type ClipEffect string

const (
	EffectZoomIn     ClipEffect = "zoom_in"     // 1.0 -> 1.3 toward center
	EffectZoomOut    ClipEffect = "zoom_out"    // 1.3 -> 1.0 from center
	EffectPan        ClipEffect = "pan"         // Drifts left to right at a fixed zoom
	EffectRotateZoom ClipEffect = "rotate_zoom" // Slow zoom with a gentle sway
)

// allEffects is the pool from which a random effect is chosen per clip
var allEffects = []ClipEffect{
	EffectZoomIn,
	EffectZoomOut,
	EffectPan,
	EffectRotateZoom,
}

// AllEffects returns a copy of the effect pool.
func AllEffects() []ClipEffect {
	return append([]ClipEffect(nil), allEffects...)
}

func (e ClipEffect) Valid() bool {
	for _, known := range allEffects {
		if e == known {
			return true
		}
	}
	return false
}

// RandomEffect picks a random motion effect for a clip
func RandomEffect() ClipEffect {
	return allEffects[rand.Intn(len(allEffects))]
}

// Rotation sway amplitude in radians and the zoompan overscan that keeps the
// rotated corners inside the frame.
const (
	rotateAmplitude       = 0.05
	rotateOverscanPercent = 115
)

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	fps    int
	logger zerolog.Logger

	run   func(ctx context.Context, name string, args ...string) error
	probe func(ctx context.Context, args ...string) ([]byte, error)
	pick  func() ClipEffect
}

func NewFFmpegService(fps int, logger zerolog.Logger) *FFmpegService {
	if fps <= 0 {
		fps = 30
	}
	s := &FFmpegService{
		fps:    fps,
		logger: logger,
		probe: func(ctx context.Context, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, "ffprobe", args...).Output()
		},
		pick: RandomEffect,
	}
	s.run = s.runCommand
	return s
}

// runCommand executes a binary and folds its stderr into the error.
func (s *FFmpegService) runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, truncate(strings.TrimSpace(string(out)), 1000))
	}
	return nil
}

// ComposeRequest is everything needed to render one finished video.
type ComposeRequest struct {
	ImagePaths    []string
	AudioPath     string
	AudioDuration float64 // seconds
	Segments      []models.SubtitleSegment
	Width         int
	Height        int
	OutputPath    string
	WorkDir       string // scratch space for clips and caption files
}

// Compose renders one clip per image, joins them, burns in captions, lays
// the narration under the picture and cuts the result to the narration length.
func (s *FFmpegService) Compose(ctx context.Context, req ComposeRequest) error {
	if len(req.ImagePaths) == 0 {
		return fmt.Errorf("no images to compose")
	}
	if req.AudioDuration <= 0 {
		return fmt.Errorf("invalid audio duration %.3f", req.AudioDuration)
	}
	if req.Width <= 0 || req.Height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", req.Width, req.Height)
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	perClip := req.AudioDuration / float64(len(req.ImagePaths))

	clips := make([]string, 0, len(req.ImagePaths))
	for i, img := range req.ImagePaths {
		effect := s.pick()
		clip := filepath.Join(req.WorkDir, fmt.Sprintf("clip_%03d.mp4", i+1))

		s.logger.Debug().Int("clip", i+1).Str("effect", string(effect)).Float64("seconds", perClip).Msg("rendering clip")

		if err := s.RenderClip(ctx, img, clip, effect, perClip, req.Width, req.Height); err != nil {
			return fmt.Errorf("failed to render clip %d: %w", i+1, err)
		}
		clips = append(clips, clip)
	}

	slideshow := filepath.Join(req.WorkDir, "slideshow.mp4")
	if err := s.ConcatenateClips(ctx, clips, slideshow, req.WorkDir); err != nil {
		return err
	}

	subtitlePath := ""
	if len(req.Segments) > 0 {
		subtitlePath = filepath.Join(req.WorkDir, "subtitles.ass")
		if err := WriteASS(req.Segments, req.Width, req.Height, subtitlePath); err != nil {
			return err
		}
	}

	if err := s.Finalize(ctx, slideshow, req.AudioPath, subtitlePath, req.AudioDuration, perClip, req.OutputPath); err != nil {
		return err
	}

	s.logger.Info().Str("output", req.OutputPath).Int("clips", len(clips)).Float64("duration", req.AudioDuration).Msg("video composed")
	return nil
}

// RenderClip turns one still into a silent clip of the given length with a motion effect.
func (s *FFmpegService) RenderClip(ctx context.Context, imagePath, outputPath string, effect ClipEffect, seconds float64, width, height int) error {
	frames := int(math.Ceil(seconds * float64(s.fps)))
	if frames < 1 {
		frames = 1
	}

	vf := buildClipFilter(effect, width, height, frames, s.fps)

	args := []string{
		"-i", imagePath, // Single image input (zoompan handles duration)
		"-vf", vf,
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(s.fps),
		"-an",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg render clip failed (effect=%s): %w", effect, err)
	}
	return nil
}

// buildClipFilter constructs the -vf chain for one clip: cover-scale and
// center-crop to twice the output size (zoom headroom), then the effect.
func buildClipFilter(effect ClipEffect, width, height, frames, fps int) string {
	prep := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
		width*2, height*2, width*2, height*2,
	)

	const cx, cy = "iw/2-(iw/zoom/2)", "ih/2-(ih/zoom/2)"

	var zExpr, xExpr, yExpr string
	outW, outH := width, height
	tail := ""

	switch effect {
	case EffectZoomOut:
		zExpr = fmt.Sprintf("1.3-0.3*on/%d", frames)
		xExpr, yExpr = cx, cy

	case EffectPan:
		zExpr = "1.2"
		xExpr = fmt.Sprintf("(iw-iw/zoom)*on/%d", frames)
		yExpr = cy

	case EffectRotateZoom:
		// Render slightly larger, sway, then crop back so no corner shows.
		zExpr = fmt.Sprintf("1.0+0.2*on/%d", frames)
		xExpr, yExpr = cx, cy
		outW, outH = overscan(width), overscan(height)
		seconds := float64(frames) / float64(fps)
		tail = fmt.Sprintf(",rotate='%.3f*sin(2*PI*t/%.3f)':c=black,crop=%d:%d", rotateAmplitude, seconds, width, height)

	default: // EffectZoomIn
		zExpr = fmt.Sprintf("1.0+0.3*on/%d", frames)
		xExpr, yExpr = cx, cy
	}

	zoompan := fmt.Sprintf(
		"zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d",
		zExpr, xExpr, yExpr, frames, outW, outH, fps,
	)

	return prep + "," + zoompan + tail + ",format=yuv420p"
}

// overscan enlarges a dimension by rotateOverscanPercent, rounded up to even.
func overscan(v int) int {
	n := (v*rotateOverscanPercent + 99) / 100
	if n%2 == 1 {
		n++
	}
	return n
}

// ConcatenateClips combines multiple video clips into one video without re-encoding.
func (s *FFmpegService) ConcatenateClips(ctx context.Context, clipPaths []string, outputPath, workDir string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(workDir, "concat_list.txt")
	var sb strings.Builder
	for _, path := range clipPaths {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(abs, "'", "'\\''"))
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

// Finalize muxes the narration under the slideshow, burns in captions and
// cuts the output to exactly duration seconds. The last frame is held when
// the slideshow runs short of the audio.
func (s *FFmpegService) Finalize(ctx context.Context, videoPath, audioPath, subtitlePath string, duration, padSeconds float64, outputPath string) error {
	filterExpr := fmt.Sprintf("[0:v]tpad=stop_mode=clone:stop_duration=%.3f", padSeconds+1)
	if subtitlePath != "" {
		filterExpr += fmt.Sprintf(",ass='%s'", escapeFFmpegFilterPath(subtitlePath))
	}
	filterExpr += "[v]"

	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-filter_complex", filterExpr,
		"-map", "[v]",
		"-map", "1:a",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(s.fps),
		"-t", strconv.FormatFloat(duration, 'f', 3, 64),
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg finalize failed: %w", err)
	}
	return nil
}

// escapeFFmpegFilterPath escapes special characters in file paths for FFmpeg filter syntax.
func escapeFFmpegFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// GetAudioDuration returns the duration of an audio file in seconds.
func (s *FFmpegService) GetAudioDuration(ctx context.Context, audioPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	}

	output, err := s.probe(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	durationSec, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	if durationSec <= 0 {
		return 0, fmt.Errorf("audio has no duration")
	}

	return durationSec, nil
}
