/**
 * OCR adapter for the replay-check worker
 *
 * Wraps the external recognition engine behind a small interface so the frame
 * processor can be exercised with fakes. The adapter owns marshaling the image
 * into the engine's expected input shape and normalizing engine output into
 * ordered (text, confidence) lines.
 */

package ocr

import (
	"context"
	"image"
	"time"
)

// Line is one recognized text line with its engine-reported confidence in
// [0, 1]. Order within a result follows the engine's reading order.
type Line struct {
	Text       string
	Confidence float64
}

// Texts flattens lines to their text content, preserving order.
func Texts(lines []Line) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// Engine recognizes text in an image. Implementations report the elapsed
// recognition time so callers can account for it without re-measuring.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]Line, time.Duration, error)
	Close() error
}
