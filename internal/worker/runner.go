/**
 * Batch runner
 *
 * Assembles the capture pipeline for one batch request: ffmpeg source, session
 * store, frame processor, orchestrator, and optional result persistence. Used
 * by the queue consumer and by the one-shot CLI.
 */

package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/streamops/replaycheck-worker/internal/batch"
	"github.com/streamops/replaycheck-worker/internal/capture"
	"github.com/streamops/replaycheck-worker/internal/classify"
	"github.com/streamops/replaycheck-worker/internal/config"
	"github.com/streamops/replaycheck-worker/internal/frame"
	"github.com/streamops/replaycheck-worker/internal/ocr"
	"github.com/streamops/replaycheck-worker/internal/storage"
)

// BatchRequest describes one capture-and-analyze run.
type BatchRequest struct {
	BatchID    string
	StreamURL  string
	FrameCount int
	OCREnabled bool
}

// BatchOutcome is the result of one run.
type BatchOutcome struct {
	BatchID    string
	SessionDir string
	Results    []*frame.AnalysisResult
	Summary    *batch.Summary
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	Config *config.Config
	Rules  *classify.Rules
	Engine ocr.Engine               // required for OCR-enabled requests
	DB     *storage.PostgresClient  // optional result persistence
	Logger *slog.Logger

	// newSource lets tests substitute the ffmpeg source.
	newSource func(cfg *capture.FFmpegSourceConfig) (capture.Source, error)
}

// Runner executes batch requests.
type Runner struct {
	cfg       *config.Config
	rules     *classify.Rules
	engine    ocr.Engine
	db        *storage.PostgresClient
	logger    *slog.Logger
	newSource func(cfg *capture.FFmpegSourceConfig) (capture.Source, error)
}

// NewRunner creates a batch runner.
func NewRunner(rc *RunnerConfig) (*Runner, error) {
	if rc == nil || rc.Config == nil {
		return nil, fmt.Errorf("config is required")
	}

	rules := rc.Rules
	if rules == nil {
		rules = classify.DefaultRules()
	}

	logger := rc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	newSource := rc.newSource
	if newSource == nil {
		newSource = func(cfg *capture.FFmpegSourceConfig) (capture.Source, error) {
			return capture.NewFFmpegSource(cfg)
		}
	}

	return &Runner{
		cfg:       rc.Config,
		rules:     rules,
		engine:    rc.Engine,
		db:        rc.DB,
		logger:    logger,
		newSource: newSource,
	}, nil
}

// RunBatch captures and analyzes one batch of frames.
func (r *Runner) RunBatch(ctx context.Context, req *BatchRequest) (*BatchOutcome, error) {
	if req == nil || req.StreamURL == "" {
		return nil, fmt.Errorf("stream URL is required")
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	frameCount := req.FrameCount
	if frameCount <= 0 {
		frameCount = r.cfg.FrameCount
	}

	ocrEnabled := req.OCREnabled
	if ocrEnabled && r.engine == nil {
		return nil, fmt.Errorf("OCR requested but no engine is configured")
	}

	r.logger.Info("starting batch",
		"batch", batchID,
		"stream", req.StreamURL,
		"frames", frameCount,
		"ocr", ocrEnabled)

	store, err := storage.NewSessionStore(r.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	r.logger.Info("session directory created", "dir", store.Dir())

	source, err := r.newSource(&capture.FFmpegSourceConfig{
		StreamURL:  req.StreamURL,
		FrameCount: frameCount,
		ScaleWidth: r.cfg.ScaleWidth,
		FPS:        r.cfg.CaptureFPS,
		Logger:     r.logger,
	})
	if err != nil {
		return nil, err
	}
	defer source.Close()

	processor, err := frame.NewProcessor(&frame.ProcessorConfig{
		Store:      store,
		Engine:     r.engine,
		Rules:      r.rules,
		CropRatio:  r.cfg.CropRatio,
		OCREnabled: ocrEnabled,
		Logger:     r.logger,
	})
	if err != nil {
		return nil, err
	}

	orchestrator, err := batch.NewOrchestrator(processor, r.logger)
	if err != nil {
		return nil, err
	}

	results, summary, err := orchestrator.Run(ctx, source, frameCount)
	if err != nil {
		return nil, fmt.Errorf("batch %s failed: %w", batchID, err)
	}

	outcome := &BatchOutcome{
		BatchID:    batchID,
		SessionDir: store.Dir(),
		Results:    results,
		Summary:    summary,
	}

	if r.db != nil {
		record := &storage.BatchRecord{
			BatchID:   batchID,
			StreamURL: req.StreamURL,
			Summary:   summary,
			Results:   results,
		}
		if err := r.db.StoreBatch(ctx, record); err != nil {
			// Images and the in-memory outcome survive; losing the database
			// row is not worth failing the batch.
			r.logger.Warn("failed to persist batch record", "batch", batchID, "error", err)
		}
	}

	return outcome, nil
}
