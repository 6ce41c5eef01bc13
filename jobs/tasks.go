// Package jobs defines the background tasks of the authorization service:
// asynchronous audit persistence and the audit retention sweep.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/r2suporte/interalpha/internal/audit"
	"github.com/r2suporte/interalpha/internal/authz"
)

const (
	// QueueAudit is the queue audit tasks run on.
	QueueAudit = "audit"
	// TaskTypeAuditRecord persists one decision record.
	TaskTypeAuditRecord = "audit:record"
	// TaskTypeAuditSweep prunes decision records past retention.
	TaskTypeAuditSweep = "audit:sweep"
)

// NewAuditRecordTask wraps an audit entry in an Asynq task.
func NewAuditRecordTask(entry authz.AuditEntry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditRecord, data), nil
}

// NewAuditSweepTask builds the retention sweep task.
func NewAuditSweepTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(map[string]string{"retention": retention.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditSweep, data), nil
}

// AuditRecordHandler persists audit entries delivered through the queue.
func AuditRecordHandler(store *audit.Store) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var entry authz.AuditEntry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			return asynq.SkipRetry
		}
		return store.Insert(ctx, entry)
	}
}

// AuditSweepHandler deletes decision records older than the retention window.
func AuditSweepHandler(store *audit.Store) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload map[string]string
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention, err := time.ParseDuration(payload["retention"])
		if err != nil || retention <= 0 {
			return asynq.SkipRetry
		}
		_, err = store.DeleteOlderThan(ctx, time.Now().Add(-retention))
		return err
	}
}
