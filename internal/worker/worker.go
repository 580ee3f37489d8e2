// Package worker runs background jobs: email delivery and event reminders.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/metrics"
	"github.com/aura-community/backend/pkg/queue"
)

// Sender delivers one HTML email.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// DeliveryLog records each delivery attempt.
type DeliveryLog interface {
	Create(ctx context.Context, l *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// JobQueue is the part of queue.Queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailProcessor sends queued email jobs and records the outcome in email_logs.
type EmailProcessor struct {
	sender  Sender
	logs    DeliveryLog
	queue   JobQueue
	metrics *metrics.Metrics
	logger  *zap.Logger
	backoff time.Duration
}

// NewEmailProcessor creates an email job processor. m may be nil.
func NewEmailProcessor(sender Sender, logs DeliveryLog, q JobQueue, m *metrics.Metrics, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{sender: sender, logs: logs, queue: q, metrics: m, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		p.logger.Warn("email job without recipient dropped", zap.String("job_id", job.ID))
		return nil
	}

	entry := &models.EmailLog{
		UserID:         payload.UserID,
		EventID:        payload.EventID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}
	if err := p.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	if err := p.sender.Send(payload.RecipientEmail, payload.Subject, payload.BodyHTML); err != nil {
		if logErr := p.logs.MarkFailed(ctx, entry.ID, err.Error()); logErr != nil {
			p.logger.Warn("mark email failed", zap.String("log_id", entry.ID.String()), zap.Error(logErr))
		}
		return err
	}
	if err := p.logs.MarkSent(ctx, entry.ID, time.Now().UTC()); err != nil {
		p.logger.Warn("mark email sent", zap.String("log_id", entry.ID.String()), zap.Error(err))
	}
	p.logger.Info("email sent", zap.String("type", payload.EmailType), zap.String("log_id", entry.ID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			outcome := "failed"
			if job.Exhausted() {
				outcome = "dead"
			}
			p.metrics.JobInc(string(job.Type), outcome)
			job.LastError = err.Error()
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
			continue
		}
		p.metrics.JobInc(string(job.Type), "ok")
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
