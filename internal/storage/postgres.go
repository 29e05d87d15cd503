/**
 * PostgreSQL Client for the replay-check worker
 *
 * Optional persistence of batch runs and per-frame analyses. The worker runs
 * fine without it; saved images on disk are the primary output.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/streamops/replaycheck-worker/internal/batch"
	"github.com/streamops/replaycheck-worker/internal/frame"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// BatchRecord is one completed run with its per-frame analyses.
type BatchRecord struct {
	BatchID   string
	StreamURL string
	Summary   *batch.Summary
	Results   []*frame.AnalysisResult
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A capture worker writes a handful of rows per batch; a small pool is
	// plenty.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// Ping checks database connectivity.
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (p *PostgresClient) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the worker's tables if they do not exist yet.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS capture_batches (
			batch_id         TEXT PRIMARY KEY,
			stream_url       TEXT NOT NULL,
			frames_requested INTEGER NOT NULL,
			frames_processed INTEGER NOT NULL,
			decode_failures  INTEGER NOT NULL DEFAULT 0,
			frame_failures   INTEGER NOT NULL DEFAULT 0,
			ocr_failures     INTEGER NOT NULL DEFAULT 0,
			timestamp_frames INTEGER NOT NULL DEFAULT 0,
			replay_frames    INTEGER NOT NULL DEFAULT 0,
			total_ocr_ms     BIGINT NOT NULL DEFAULT 0,
			avg_ocr_ms       BIGINT NOT NULL DEFAULT 0,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS frame_analyses (
			id                BIGSERIAL PRIMARY KEY,
			batch_id          TEXT NOT NULL REFERENCES capture_batches(batch_id) ON DELETE CASCADE,
			frame_index       INTEGER NOT NULL,
			frame_path        TEXT NOT NULL,
			crop_path         TEXT NOT NULL,
			has_timestamp     BOOLEAN NOT NULL DEFAULT FALSE,
			has_replay_marker BOOLEAN NOT NULL DEFAULT FALSE,
			lines             TEXT[] NOT NULL DEFAULT '{}',
			confidences       DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
			ocr_duration_ms   BIGINT NOT NULL DEFAULT 0,
			ocr_error         TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (batch_id, frame_index)
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// StoreBatch persists a completed run and its per-frame analyses atomically.
func (p *PostgresClient) StoreBatch(ctx context.Context, record *BatchRecord) error {
	if record == nil || record.BatchID == "" {
		return fmt.Errorf("batch ID is required")
	}
	if record.Summary == nil {
		return fmt.Errorf("batch summary is required")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := record.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO capture_batches (
			batch_id, stream_url, frames_requested, frames_processed,
			decode_failures, frame_failures, ocr_failures,
			timestamp_frames, replay_frames, total_ocr_ms, avg_ocr_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.BatchID, record.StreamURL, s.FramesRequested, s.FramesProcessed,
		s.DecodeFailures, s.FrameFailures, s.OCRFailures,
		s.TimestampFrames, s.ReplayFrames, s.TotalOCRMs, s.AvgOCRMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch %s: %w", record.BatchID, err)
	}

	for _, result := range record.Results {
		texts := make([]string, len(result.Lines))
		confs := make([]float64, len(result.Lines))
		for i, line := range result.Lines {
			texts[i] = line.Text
			confs[i] = line.Confidence
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO frame_analyses (
				batch_id, frame_index, frame_path, crop_path,
				has_timestamp, has_replay_marker, lines, confidences,
				ocr_duration_ms, ocr_error
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			record.BatchID, result.FrameIndex, result.FramePath, result.CropPath,
			result.HasTimestamp, result.HasReplayMarker,
			pq.Array(texts), pq.Array(confs),
			result.OCRDurationMs, result.OCRError,
		)
		if err != nil {
			return fmt.Errorf("failed to insert frame %d of batch %s: %w",
				result.FrameIndex, record.BatchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch %s: %w", record.BatchID, err)
	}

	return nil
}
