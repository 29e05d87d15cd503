/**
 * Batch orchestration
 *
 * Pulls frames from a source one at a time, runs each through the frame
 * processor, and aggregates summary statistics. Per-frame failures are
 * isolated: a frame that cannot be decoded or persisted is counted and
 * skipped, never aborting the rest of the batch. Only an unavailable source
 * is fatal to the run.
 */

package batch

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/streamops/replaycheck-worker/internal/capture"
	"github.com/streamops/replaycheck-worker/internal/errors"
	"github.com/streamops/replaycheck-worker/internal/frame"
)

// DefaultFrameCount is how many frames a run requests when unspecified.
const DefaultFrameCount = 2

// Summary aggregates one run's results, including failures that were
// swallowed at lower levels.
type Summary struct {
	FramesRequested int   `json:"frames_requested"`
	FramesProcessed int   `json:"frames_processed"`
	DecodeFailures  int   `json:"decode_failures"`
	FrameFailures   int   `json:"frame_failures"`
	OCRFailures     int   `json:"ocr_failures"`
	TimestampFrames int   `json:"timestamp_frames"`
	ReplayFrames    int   `json:"replay_frames"`
	TotalOCRMs      int64 `json:"total_ocr_ms"`
	AvgOCRMs        int64 `json:"avg_ocr_ms"`
}

// Partial reports whether the source ended before the requested count.
func (s *Summary) Partial() bool { return s.FramesProcessed < s.FramesRequested }

// Orchestrator drives a batch run.
type Orchestrator struct {
	processor *frame.Processor
	logger    *slog.Logger
}

// NewOrchestrator creates a batch orchestrator.
func NewOrchestrator(processor *frame.Processor, logger *slog.Logger) (*Orchestrator, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{processor: processor, logger: logger}, nil
}

// Run requests up to count frames from the source and processes each in
// arrival order. A source that ends early yields a valid partial batch.
func (o *Orchestrator) Run(ctx context.Context, source capture.Source, count int) ([]*frame.AnalysisResult, *Summary, error) {
	if count <= 0 {
		count = DefaultFrameCount
	}

	summary := &Summary{FramesRequested: count}
	results := make([]*frame.AnalysisResult, 0, count)

	for len(results) < count {
		f, err := source.Next(ctx)
		if err != nil {
			if stderrors.Is(err, errors.ErrExhausted) {
				o.logger.Info("frame source ended early",
					"processed", len(results), "requested", count)
				break
			}
			if errors.HasCode(err, errors.ErrorDecodeFailed) {
				summary.DecodeFailures++
				o.logger.Warn("skipping undecodable frame", "error", err)
				continue
			}
			// Source unavailable or context cancelled: fatal to the run.
			return results, summary, err
		}

		result, err := o.processor.Process(ctx, f)
		if err != nil {
			if errors.HasCode(err, errors.ErrorEngineInitFailed) {
				o.logger.Error("OCR engine unavailable, aborting batch", "error", err)
				summary.FramesProcessed = len(results)
				return results, summary, err
			}
			summary.FrameFailures++
			o.logger.Error("frame processing failed", "frame", f.Index, "error", err)
			continue
		}

		results = append(results, result)
		o.tally(summary, result)
	}

	summary.FramesProcessed = len(results)
	if n := summary.FramesProcessed - summary.OCRFailures; n > 0 {
		summary.AvgOCRMs = summary.TotalOCRMs / int64(n)
	}

	o.logger.Info("batch complete",
		"processed", summary.FramesProcessed,
		"requested", summary.FramesRequested,
		"replay_frames", summary.ReplayFrames,
		"timestamp_frames", summary.TimestampFrames,
		"decode_failures", summary.DecodeFailures,
		"frame_failures", summary.FrameFailures,
		"total_ocr_ms", summary.TotalOCRMs)

	return results, summary, nil
}

func (o *Orchestrator) tally(summary *Summary, result *frame.AnalysisResult) {
	if result.OCRFailed() {
		summary.OCRFailures++
		return
	}
	if result.HasTimestamp {
		summary.TimestampFrames++
	}
	if result.HasReplayMarker {
		summary.ReplayFrames++
	}
	summary.TotalOCRMs += result.OCRDurationMs
}
