package worker

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/streamops/replaycheck-worker/internal/capture"
	"github.com/streamops/replaycheck-worker/internal/config"
	"github.com/streamops/replaycheck-worker/internal/errors"
	"github.com/streamops/replaycheck-worker/internal/frame"
)

// stubSource yields a fixed number of solid frames.
type stubSource struct {
	remaining int
	index     int
	closed    bool
}

func (s *stubSource) Next(ctx context.Context) (*frame.Frame, error) {
	if s.remaining == 0 {
		return nil, errors.ErrExhausted
	}
	s.remaining--
	s.index++
	return &frame.Frame{
		Image:      image.NewRGBA(image.Rect(0, 0, 64, 36)),
		Index:      s.index,
		CapturedAt: time.Now(),
	}, nil
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		FrameCount: 2,
		ScaleWidth: 1280,
		CaptureFPS: 1.0,
		OutputDir:  t.TempDir(),
		CropRatio:  0.25,
		LogLevel:   "error",
	}
}

func TestRunBatchWritesSessionImages(t *testing.T) {
	src := &stubSource{remaining: 2}

	var gotCfg *capture.FFmpegSourceConfig
	runner, err := NewRunner(&RunnerConfig{
		Config: testConfig(t),
		newSource: func(cfg *capture.FFmpegSourceConfig) (capture.Source, error) {
			gotCfg = cfg
			return src, nil
		},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	outcome, err := runner.RunBatch(context.Background(), &BatchRequest{
		StreamURL: "rtmp://example.com/live",
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if gotCfg.StreamURL != "rtmp://example.com/live" {
		t.Errorf("source stream URL = %q", gotCfg.StreamURL)
	}
	if gotCfg.FrameCount != 2 {
		t.Errorf("source frame count = %d, want 2", gotCfg.FrameCount)
	}
	if outcome.BatchID == "" {
		t.Error("expected a generated batch ID")
	}
	if !src.closed {
		t.Error("source was not closed")
	}
	if len(outcome.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(outcome.Results))
	}
	if outcome.Summary.FramesProcessed != 2 || outcome.Summary.OCRFailures != 0 {
		t.Errorf("summary = %+v", outcome.Summary)
	}

	entries, err := os.ReadDir(outcome.SessionDir)
	if err != nil {
		t.Fatalf("read session dir: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("session dir has %d files, want 4 (2 frames + 2 crops)", len(entries))
	}
	for _, r := range outcome.Results {
		if filepath.Dir(r.FramePath) != outcome.SessionDir {
			t.Errorf("frame path %q outside session dir", r.FramePath)
		}
		if !strings.Contains(filepath.Base(r.CropPath), "cropped") {
			t.Errorf("crop path %q missing cropped marker", r.CropPath)
		}
	}
}

func TestRunBatchRequiresStreamURL(t *testing.T) {
	runner, err := NewRunner(&RunnerConfig{Config: testConfig(t)})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if _, err := runner.RunBatch(context.Background(), &BatchRequest{}); err == nil {
		t.Error("expected error for missing stream URL")
	}
}

func TestRunBatchRequiresEngineForOCR(t *testing.T) {
	runner, err := NewRunner(&RunnerConfig{Config: testConfig(t)})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	_, err = runner.RunBatch(context.Background(), &BatchRequest{
		StreamURL:  "rtmp://example.com/live",
		OCREnabled: true,
	})
	if err == nil {
		t.Error("expected error when OCR is requested without an engine")
	}
}
