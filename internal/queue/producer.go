package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Producer submits capture batch tasks to the Redis queue.
type Producer struct {
	client    *asynq.Client
	queueName string
}

// NewProducer creates a task producer for the given queue.
func NewProducer(redisURL, queueName string) (*Producer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if queueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Producer{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
	}, nil
}

// Enqueue submits a capture batch task, assigning a batch ID if the caller
// did not. Returns the batch ID.
func (p *Producer) Enqueue(ctx context.Context, task *BatchTask) (string, error) {
	if task.StreamURL == "" {
		return "", fmt.Errorf("stream URL is required")
	}
	if task.BatchID == "" {
		task.BatchID = uuid.NewString()
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch task: %w", err)
	}

	_, err = p.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeCaptureAnalyze, payload),
		asynq.Queue(p.queueName),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue batch %s: %w", task.BatchID, err)
	}

	return task.BatchID, nil
}

// Close releases the underlying client.
func (p *Producer) Close() error {
	return p.client.Close()
}
