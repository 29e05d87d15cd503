/**
 * Redis batch-status mirror
 *
 * Producers enqueue a batch and then poll a Redis hash to follow it. The
 * mirror is best effort: a failed status write never fails the batch.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamops/replaycheck-worker/internal/errors"
	"github.com/streamops/replaycheck-worker/internal/worker"
)

// statusTTL keeps finished batch status around long enough for producers to
// collect it without letting the keys pile up forever.
const statusTTL = 24 * time.Hour

// StatusMirror writes batch status hashes to Redis.
type StatusMirror struct {
	client *redis.Client
}

// NewStatusMirror creates a status mirror from a Redis URL.
func NewStatusMirror(redisURL string) (*StatusMirror, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &StatusMirror{client: client}, nil
}

// Close releases the Redis connection.
func (m *StatusMirror) Close() error {
	return m.client.Close()
}

func statusKey(batchID string) string {
	return fmt.Sprintf("replaycheck:batch:%s", batchID)
}

// SetProcessing marks a batch as in flight.
func (m *StatusMirror) SetProcessing(ctx context.Context, batchID string) error {
	return m.write(ctx, batchID, map[string]interface{}{
		"status":    "processing",
		"updatedAt": time.Now().Format(time.RFC3339),
	})
}

// SetCompleted records a finished batch with its summary.
func (m *StatusMirror) SetCompleted(ctx context.Context, outcome *worker.BatchOutcome) error {
	summaryJSON, err := json.Marshal(outcome.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	return m.write(ctx, outcome.BatchID, map[string]interface{}{
		"status":     "completed",
		"updatedAt":  time.Now().Format(time.RFC3339),
		"sessionDir": outcome.SessionDir,
		"summary":    string(summaryJSON),
	})
}

// SetFailed records a failed batch. A structured processing error keeps its
// code and detail map so pollers see more than the flattened message.
func (m *StatusMirror) SetFailed(ctx context.Context, batchID string, cause error) error {
	return m.write(ctx, batchID, failureFields(cause, time.Now()))
}

func failureFields(cause error, now time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"status":    "failed",
		"updatedAt": now.Format(time.RFC3339),
		"error":     cause.Error(),
	}

	var procErr *errors.ProcessingError
	if stderrors.As(cause, &procErr) {
		if detail, err := json.Marshal(procErr.ToMap()); err == nil {
			fields["detail"] = string(detail)
		}
	}
	return fields
}

func (m *StatusMirror) write(ctx context.Context, batchID string, fields map[string]interface{}) error {
	key := statusKey(batchID)

	pipe := m.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, statusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write status for batch %s: %w", batchID, err)
	}
	return nil
}
