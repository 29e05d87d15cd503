/**
 * Frame types and image geometry for the replay-check worker
 */

package frame

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"
)

// Frame is one captured image plus its capture metadata. Frames are immutable
// once built; the index is 1-based and assigned by the frame source.
type Frame struct {
	Image      image.Image
	Index      int
	CapturedAt time.Time
}

// Flatten returns an opaque version of img. Images without transparency are
// returned unchanged; images carrying an alpha channel are composited over a
// white background so JPEG encoding does not silently corrupt them.
func Flatten(img image.Image) image.Image {
	if op, ok := img.(interface{ Opaque() bool }); ok && op.Opaque() {
		return img
	}

	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}

// CropTopRight extracts the top-right region of img. Width and height are
// round(src * ratio), clamped to at least one pixel, with the region's top and
// right edges flush with the source edges.
func CropTopRight(img image.Image, ratio float64) image.Image {
	bounds := img.Bounds()
	cw := roundDim(bounds.Dx(), ratio)
	ch := roundDim(bounds.Dy(), ratio)

	rect := image.Rect(bounds.Max.X-cw, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+ch)

	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}

	out := image.NewRGBA(image.Rect(0, 0, cw, ch))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

func roundDim(dim int, ratio float64) int {
	d := int(math.Round(float64(dim) * ratio))
	if d < 1 {
		d = 1
	}
	if d > dim {
		d = dim
	}
	return d
}
