package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/r2suporte/interalpha/internal/authz"
)

// AuditSink implements authz.Sink by enqueueing entries for the worker to
// persist. Enqueueing against local Redis keeps Record off the request
// path's latency budget; a failed enqueue is logged and dropped here rather
// than propagated, because the decision it describes has already been made.
type AuditSink struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewAuditSink builds a sink over an Asynq client.
func NewAuditSink(client *asynq.Client, logger *slog.Logger) *AuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditSink{client: client, logger: logger}
}

// Record enqueues the entry on the audit queue.
func (s *AuditSink) Record(ctx context.Context, entry authz.AuditEntry) {
	task, err := NewAuditRecordTask(entry)
	if err != nil {
		s.logger.Error("encode audit task", slog.Any("error", err))
		return
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(QueueAudit)); err != nil {
		s.logger.Error("enqueue audit entry",
			slog.String("actor_id", entry.ActorID),
			slog.String("action", entry.Action),
			slog.Any("error", err))
	}
}
