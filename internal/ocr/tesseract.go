package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/streamops/replaycheck-worker/internal/errors"
)

// TesseractEngine implements Engine using the gosseract client. The client is
// created lazily on first use and reused for the rest of the process; it is
// not safe for concurrent calls, so all access is serialized through mu.
type TesseractEngine struct {
	languages []string

	mu      sync.Mutex
	once    sync.Once
	client  *gosseract.Client
	initErr error
}

// NewTesseractEngine constructs a Tesseract-backed engine. Languages follow
// the tessdata naming convention (e.g. "chi_sim", "eng").
func NewTesseractEngine(languages []string) *TesseractEngine {
	return &TesseractEngine{languages: languages}
}

// init creates the shared client. Safe to call repeatedly; only the first
// call does work, later calls observe the same client or the same error.
func (e *TesseractEngine) init() error {
	e.once.Do(func() {
		client := gosseract.NewClient()
		if len(e.languages) > 0 {
			if err := client.SetLanguage(e.languages...); err != nil {
				client.Close()
				e.initErr = errors.NewEngineInitFailedError(
					fmt.Errorf("set languages %v: %w", e.languages, err))
				return
			}
		}
		e.client = client
	})
	return e.initErr
}

// Recognize runs OCR on the image and returns recognized lines in the
// engine's top-to-bottom reading order.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) ([]Line, time.Duration, error) {
	start := time.Now()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, 0, fmt.Errorf("encode image for recognition: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.init(); err != nil {
		return nil, 0, err
	}

	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, 0, fmt.Errorf("set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, 0, fmt.Errorf("recognize text lines: %w", err)
	}

	return normalizeLines(boxes), time.Since(start), nil
}

// Close releases the shared client. The engine is unusable afterwards.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// normalizeLines converts gosseract line boxes into the adapter's shape:
// whitespace-trimmed text, confidence scaled from percent to [0, 1], order
// preserved, empty lines dropped.
func normalizeLines(boxes []gosseract.BoundingBox) []Line {
	lines := make([]Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100.0
		if conf < 0 {
			conf = 0
		} else if conf > 1 {
			conf = 1
		}
		lines = append(lines, Line{Text: text, Confidence: conf})
	}
	return lines
}
