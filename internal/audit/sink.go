package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/r2suporte/interalpha/internal/authz"
)

// Writer is the persistence half a buffered sink drains into.
type Writer interface {
	Insert(ctx context.Context, entry authz.AuditEntry) error
}

// BufferedSink implements authz.Sink over an in-process channel drained by a
// background goroutine, so Record never blocks the request path. When the
// buffer is full the entry is dropped and logged; durability-sensitive
// deployments should use the asynq-backed sink instead.
type BufferedSink struct {
	writer Writer
	logger *slog.Logger
	ch     chan authz.AuditEntry
	done   chan struct{}
	once   sync.Once
}

// NewBufferedSink starts a sink draining into writer. size is the buffer
// capacity; zero falls back to 256.
func NewBufferedSink(writer Writer, size int, logger *slog.Logger) *BufferedSink {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &BufferedSink{
		writer: writer,
		logger: logger,
		ch:     make(chan authz.AuditEntry, size),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// Record enqueues the entry without blocking.
func (s *BufferedSink) Record(_ context.Context, entry authz.AuditEntry) {
	select {
	case s.ch <- entry:
	default:
		s.logger.Warn("audit buffer full, dropping entry",
			slog.String("actor_id", entry.ActorID),
			slog.String("action", entry.Action))
	}
}

// Close stops the drain goroutine after flushing buffered entries.
func (s *BufferedSink) Close() {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
}

func (s *BufferedSink) drain() {
	defer close(s.done)
	for entry := range s.ch {
		if err := s.writer.Insert(context.Background(), entry); err != nil {
			s.logger.Error("persist audit entry",
				slog.String("actor_id", entry.ActorID),
				slog.String("action", entry.Action),
				slog.Any("error", err))
		}
	}
}

// CaptureSink retains entries in memory for assertions in tests.
type CaptureSink struct {
	mu      sync.Mutex
	entries []authz.AuditEntry
}

// Record appends the entry.
func (s *CaptureSink) Record(_ context.Context, entry authz.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// Entries returns a copy of the captured entries.
func (s *CaptureSink) Entries() []authz.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]authz.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
