package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/bobarin/clipforge/internal/models"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageProvider renders one image for a prompt. format is the target aspect
// ratio ("16:9", "9:16", "1:1"); providers pick their closest canvas.
type ImageProvider interface {
	Name() string
	GenerateImage(ctx context.Context, prompt models.ImagePrompt, format string) ([]byte, error)
}

var placeholderBackground = color.RGBA{R: 50, G: 50, B: 100, A: 255}

// RenderPlaceholder draws a solid frame labelled "Image <index>" and returns
// it PNG-encoded. It never calls out to a provider.
func RenderPlaceholder(index, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid placeholder size %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: placeholderBackground}, image.Point{}, draw.Src)

	label := fmt.Sprintf("Image %d", index)
	face := basicfont.Face7x13
	textW := font.MeasureString(face, label).Ceil()
	textH := face.Metrics().Height.Ceil()

	// Draw at the bitmap font's native size, then scale the label up so it
	// spans roughly a third of the frame.
	small := image.NewRGBA(image.Rect(0, 0, textW, textH))
	d := &font.Drawer{
		Dst:  small,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(label)

	scale := width / (textW * 3)
	if scale < 1 {
		scale = 1
	}
	w, h := textW*scale, textH*scale
	x0, y0 := (width-w)/2, (height-h)/2
	draw.NearestNeighbor.Scale(img, image.Rect(x0, y0, x0+w, y0+h), small, small.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
