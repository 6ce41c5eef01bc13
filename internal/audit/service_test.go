package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/r2suporte/interalpha/internal/authz"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastOffset int
	lastLimit  int
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastOffset = offset
	s.lastLimit = limit
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func mockRow(at string, actor, action, resource, result string) TimelineRow {
	ts, _ := time.Parse(time.RFC3339, at)
	return TimelineRow{ActorID: actor, Action: action, Resource: resource, Result: result, At: ts}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{
		rows: []TimelineRow{
			mockRow("2026-03-10T10:00:00Z", "at-1", "read:clientes", "clientes", authz.ResultAllowed),
			mockRow("2026-03-09T09:00:00Z", "at-1", "approve:pagamentos", "pagamentos", authz.ResultDenied),
			mockRow("2026-03-08T08:00:00Z", "ga-1", "manage:usuarios", "usuarios", authz.ResultAllowed),
		},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext {
		t.Fatalf("expected hasNext true")
	}
	if result.Paging.NextPage != 2 {
		t.Fatalf("expected nextPage 2, got %d", result.Paging.NextPage)
	}
	if repo.lastLimit != 3 {
		t.Fatalf("expected limit 3, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 0 {
		t.Fatalf("expected offset 0, got %d", repo.lastOffset)
	}
}

func TestServiceTimelineLastPage(t *testing.T) {
	repo := &stubTimelineRepo{
		rows: []TimelineRow{
			mockRow("2026-03-08T08:00:00Z", "ga-1", "manage:usuarios", "usuarios", authz.ResultAllowed),
		},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if result.Paging.HasNext {
		t.Fatalf("expected hasNext false")
	}
	if result.Paging.PrevPage != 1 {
		t.Fatalf("expected prevPage 1, got %d", result.Paging.PrevPage)
	}
	if repo.lastOffset != 2 {
		t.Fatalf("expected offset 2, got %d", repo.lastOffset)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	if _, err := svc.Timeline(context.Background(), TimelineFilters{}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 21 {
		t.Fatalf("expected default pageSize 20 (+1 probe), got limit %d", repo.lastLimit)
	}

	if _, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 51 {
		t.Fatalf("expected pageSize clamped to 50 (+1 probe), got limit %d", repo.lastLimit)
	}
}

type captureWriter struct {
	mu      sync.Mutex
	entries []authz.AuditEntry
}

func (w *captureWriter) Insert(_ context.Context, entry authz.AuditEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
	return nil
}

func (w *captureWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func TestBufferedSinkFlushesOnClose(t *testing.T) {
	writer := &captureWriter{}
	sink := NewBufferedSink(writer, 16, nil)

	for i := 0; i < 5; i++ {
		sink.Record(context.Background(), authz.AuditEntry{ActorID: "at-1", Action: "read:clientes"})
	}
	sink.Close()

	if got := writer.count(); got != 5 {
		t.Fatalf("expected 5 persisted entries after close, got %d", got)
	}
}
