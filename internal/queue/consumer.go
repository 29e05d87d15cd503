/**
 * Queue Consumer for the replay-check worker
 *
 * Consumes capture-batch tasks from a Redis-backed queue using Asynq and runs
 * each through the batch runner. Producers that want to watch a batch poll the
 * Redis status hash this consumer maintains.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/streamops/replaycheck-worker/internal/worker"
)

// TaskTypeCaptureAnalyze is the task type for one capture-and-analyze batch.
const TaskTypeCaptureAnalyze = "capture:analyze"

// BatchTask is the queue payload for a capture batch.
type BatchTask struct {
	BatchID    string `json:"batchId,omitempty"`
	StreamURL  string `json:"streamUrl"`
	FrameCount int    `json:"frameCount,omitempty"`
	OCREnabled *bool  `json:"ocrEnabled,omitempty"`
}

// Runner executes one capture batch.
type Runner interface {
	RunBatch(ctx context.Context, req *worker.BatchRequest) (*worker.BatchOutcome, error)
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Runner            Runner
	Logger            *slog.Logger
	OCRDefault        bool  // used when a task omits ocrEnabled
	ProcessingTimeout int64 // per-batch timeout in milliseconds
}

// Consumer handles batch task consumption from the Redis queue
type Consumer struct {
	producer *Producer
	server   *asynq.Server
	mux      *asynq.ServeMux
	status   *StatusMirror
	runner   Runner
	config   *ConsumerConfig
	logger   *slog.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	producer := &Producer{client: asynq.NewClient(redisOpt), queueName: cfg.QueueName}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at a minute
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing error",
					"type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
		},
	)

	status, err := NewStatusMirror(cfg.RedisURL)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("failed to create status mirror: %w", err)
	}

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		producer: producer,
		server:   server,
		mux:      mux,
		status:   status,
		runner:   cfg.Runner,
		config:   cfg,
		logger:   logger,
	}

	mux.HandleFunc(TaskTypeCaptureAnalyze, consumer.handleCaptureAnalyze)

	return consumer, nil
}

// Enqueue submits a capture batch task through the consumer's producer.
func (c *Consumer) Enqueue(ctx context.Context, task *BatchTask) (string, error) {
	return c.producer.Enqueue(ctx, task)
}

// Start starts the queue consumer
func (c *Consumer) Start() error {
	c.logger.Info("starting queue consumer",
		"concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error("queue consumer error", "error", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop() error {
	c.logger.Info("stopping queue consumer")

	c.server.Shutdown()

	if err := c.producer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}

	return c.status.Close()
}

// handleCaptureAnalyze runs one capture batch task
func (c *Consumer) handleCaptureAnalyze(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var batchTask BatchTask
	if err := json.Unmarshal(task.Payload(), &batchTask); err != nil {
		return fmt.Errorf("failed to unmarshal batch task: %w", err)
	}

	if batchTask.BatchID == "" {
		batchTask.BatchID = uuid.NewString()
	}

	ocrEnabled := c.config.OCRDefault
	if batchTask.OCREnabled != nil {
		ocrEnabled = *batchTask.OCREnabled
	}

	c.logger.Info("processing batch task",
		"batch", batchTask.BatchID,
		"stream", batchTask.StreamURL,
		"frames", batchTask.FrameCount,
		"ocr", ocrEnabled)

	if err := c.status.SetProcessing(ctx, batchTask.BatchID); err != nil {
		c.logger.Warn("failed to mirror processing status", "batch", batchTask.BatchID, "error", err)
	}

	timeout := 5 * time.Minute
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := c.runner.RunBatch(runCtx, &worker.BatchRequest{
		BatchID:    batchTask.BatchID,
		StreamURL:  batchTask.StreamURL,
		FrameCount: batchTask.FrameCount,
		OCREnabled: ocrEnabled,
	})

	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("batch task failed",
			"batch", batchTask.BatchID, "duration", duration, "error", err)

		if statusErr := c.status.SetFailed(ctx, batchTask.BatchID, err); statusErr != nil {
			c.logger.Warn("failed to mirror failed status", "batch", batchTask.BatchID, "error", statusErr)
		}

		return fmt.Errorf("batch %s failed: %w", batchTask.BatchID, err)
	}

	c.logger.Info("batch task completed",
		"batch", outcome.BatchID,
		"duration", duration,
		"processed", outcome.Summary.FramesProcessed,
		"replay_frames", outcome.Summary.ReplayFrames,
		"session_dir", outcome.SessionDir)

	if err := c.status.SetCompleted(ctx, outcome); err != nil {
		c.logger.Warn("failed to mirror completed status", "batch", outcome.BatchID, "error", err)
	}

	return nil
}
