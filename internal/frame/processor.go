/**
 * Per-frame analysis pipeline
 *
 * One frame in, one analysis record out: flatten, persist full frame, crop the
 * top-right region, persist the crop, then (optionally) recognize and classify
 * the cropped text. An OCR failure degrades the record instead of discarding a
 * frame whose images were already saved.
 */

package frame

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/streamops/replaycheck-worker/internal/classify"
	"github.com/streamops/replaycheck-worker/internal/errors"
	"github.com/streamops/replaycheck-worker/internal/ocr"
)

// DefaultCropRatio selects the top-right quadrant sized at a quarter of each
// source dimension, where broadcast clocks and replay badges usually sit.
const DefaultCropRatio = 0.25

// Store persists frame images. Naming and directory layout belong to the
// implementation, not to the processor.
type Store interface {
	SaveFrame(index int, img image.Image) (string, error)
	SaveCrop(index int, img image.Image) (string, error)
}

// AnalysisResult is the per-frame record produced by Process. It is immutable
// after creation.
type AnalysisResult struct {
	FrameIndex      int        `json:"frame_index"`
	FramePath       string     `json:"frame_path"`
	CropPath        string     `json:"crop_path"`
	HasTimestamp    bool       `json:"has_timestamp"`
	HasReplayMarker bool       `json:"has_replay_marker"`
	Lines           []ocr.Line `json:"lines,omitempty"`
	OCRDurationMs   int64      `json:"ocr_duration_ms"`
	OCRError        string     `json:"ocr_error,omitempty"`
}

// OCRFailed reports whether the OCR step failed for this frame.
func (r *AnalysisResult) OCRFailed() bool { return r.OCRError != "" }

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Store      Store
	Engine     ocr.Engine // required when OCREnabled
	Rules      *classify.Rules
	CropRatio  float64
	OCREnabled bool
	Logger     *slog.Logger
}

// Processor runs the per-frame pipeline.
type Processor struct {
	store      Store
	engine     ocr.Engine
	rules      *classify.Rules
	cropRatio  float64
	ocrEnabled bool
	logger     *slog.Logger
}

// NewProcessor creates a frame processor.
func NewProcessor(cfg *ProcessorConfig) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.OCREnabled && cfg.Engine == nil {
		return nil, fmt.Errorf("OCR engine is required when OCR is enabled")
	}

	rules := cfg.Rules
	if rules == nil {
		rules = classify.DefaultRules()
	}

	ratio := cfg.CropRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultCropRatio
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		store:      cfg.Store,
		engine:     cfg.Engine,
		rules:      rules,
		cropRatio:  ratio,
		ocrEnabled: cfg.OCREnabled,
		logger:     logger,
	}, nil
}

// Process analyzes one frame. A persistence failure is fatal for the frame; an
// OCR failure yields a degraded result with the OCRError marker set. The one
// OCR error that propagates is ENGINE_INIT_FAILED, which no frame can recover
// from.
func (p *Processor) Process(ctx context.Context, f *Frame) (*AnalysisResult, error) {
	flat := Flatten(f.Image)

	framePath, err := p.store.SaveFrame(f.Index, flat)
	if err != nil {
		return nil, errors.NewPersistenceFailedError(f.Index, framePath, err)
	}

	crop := CropTopRight(flat, p.cropRatio)

	cropPath, err := p.store.SaveCrop(f.Index, crop)
	if err != nil {
		return nil, errors.NewPersistenceFailedError(f.Index, cropPath, err)
	}

	result := &AnalysisResult{
		FrameIndex: f.Index,
		FramePath:  framePath,
		CropPath:   cropPath,
	}

	if !p.ocrEnabled {
		return result, nil
	}

	lines, elapsed, err := p.engine.Recognize(ctx, crop)
	if err != nil {
		// A failed engine init is cached for the life of the process, so no
		// later frame can recover from it. Let the caller abort the run.
		if errors.HasCode(err, errors.ErrorEngineInitFailed) {
			return nil, err
		}
		ocrErr := errors.NewOCRFailedError(f.Index, err)
		p.logger.Warn("OCR skipped for frame", "frame", f.Index, "error", ocrErr)
		result.OCRError = ocrErr.Error()
		return result, nil
	}

	result.Lines = lines
	result.OCRDurationMs = elapsed.Milliseconds()

	verdict := p.rules.Classify(ocr.Texts(lines))
	result.HasTimestamp = verdict.HasTimestamp
	result.HasReplayMarker = verdict.HasReplayMarker

	p.logger.Debug("frame analyzed",
		"frame", f.Index,
		"lines", len(lines),
		"has_timestamp", result.HasTimestamp,
		"has_replay_marker", result.HasReplayMarker,
		"ocr_ms", result.OCRDurationMs)

	return result, nil
}
