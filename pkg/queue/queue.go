// Package queue is a Redis list job queue with bounded retries and a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis keys and retry policy.
const (
	QueueEmails = "hearth:jobs:emails"
	QueueDLQ    = "hearth:jobs:dead"

	MaxRetries   = 3
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeEmail JobType = "email"
)

// EmailPayload is one outgoing email. BodyHTML is rendered by the producer.
type EmailPayload struct {
	EmailType      string     `json:"email_type"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject"`
	BodyHTML       string     `json:"body_html"`
}

// Job is the envelope stored in Redis. Queue is the list it returns to on retry.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Exhausted reports whether another failure sends the job to the dead-letter list.
func (j *Job) Exhausted() bool {
	return j.Attempt+1 >= MaxRetries
}

// Queue is the Redis-backed job queue.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a queue on client.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// NewJob encodes payload into a fresh envelope for queueKey.
func NewJob(queueKey string, jobType JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Queue:     queueKey,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EnqueueEmail adds an email job.
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	job, err := NewJob(QueueEmails, JobTypeEmail, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueEmails, job); err != nil {
		return err
	}
	q.logger.Debug("email job queued", zap.String("job_id", job.ID), zap.String("email_type", payload.EmailType))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

// Dequeue blocks until a job arrives on one of keys or ctx ends, returning the job and its key.
// Undecodable entries are dropped and reported as (nil, "", nil).
func (q *Queue) Dequeue(ctx context.Context, keys ...string) (*Job, string, error) {
	if len(keys) == 0 {
		keys = []string{QueueEmails}
	}
	res, err := q.client.BLPop(ctx, 0, keys...).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, "", nil
	case err != nil:
		return nil, "", err
	case len(res) != 2:
		return nil, "", nil
	}
	key, raw := res[0], res[1]
	job, err := decode(raw)
	if err != nil {
		q.logger.Warn("dropping undecodable job", zap.String("queue", key), zap.Error(err))
		return nil, "", nil
	}
	if job.Queue == "" {
		job.Queue = key
	}
	return job, key, nil
}

// Retry puts a failed job back on its queue, or on the dead-letter list once MaxRetries is reached.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dead-letter push failed", zap.String("job_id", job.ID), zap.Error(err))
			return err
		}
		q.logger.Warn("job dead-lettered", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.String("last_error", job.LastError))
		return nil
	}
	key := job.Queue
	if key == "" {
		key = QueueEmails
	}
	if err := q.push(ctx, key, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Depth returns the number of waiting jobs on key.
func (q *Queue) Depth(ctx context.Context, key string) (int64, error) {
	return q.client.LLen(ctx, key).Result()
}

// DeadLetters returns up to limit dead-lettered jobs, oldest first, without removing them.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	raws, err := q.client.LRange(ctx, QueueDLQ, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(raws))
	for _, raw := range raws {
		job, err := decode(raw)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// RequeueDead moves up to limit dead-lettered jobs back to their queues with a fresh attempt count.
func (q *Queue) RequeueDead(ctx context.Context, limit int) (int, error) {
	moved := 0
	for moved < limit {
		raw, err := q.client.LPop(ctx, QueueDLQ).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, err
		}
		job, err := decode(raw)
		if err != nil {
			q.logger.Warn("discarding undecodable dead letter", zap.Error(err))
			continue
		}
		job.Attempt = 0
		job.LastError = ""
		key := job.Queue
		if key == "" {
			key = QueueEmails
		}
		if err := q.push(ctx, key, job); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func decode(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, err
	}
	return &job, nil
}
