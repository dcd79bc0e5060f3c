package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/simplifique/simplifique-gateway/internal/ledger"
)

type memStore struct {
	mu      sync.Mutex
	entries []ledger.Entry
	closed  bool
}

func (m *memStore) Record(ctx context.Context, entry ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) Summary(ctx context.Context, userKey string) (ledger.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s ledger.Summary
	for _, e := range m.entries {
		if e.UserKey == userKey {
			s.PromptTokens += e.PromptTokens
			s.CompletionTokens += e.CompletionTokens
		}
	}
	s.TotalTokens = s.PromptTokens + s.CompletionTokens
	return s, nil
}

func (m *memStore) ListRecent(ctx context.Context, userKey string, limit int) ([]ledger.Entry, error) {
	return nil, nil
}

func (m *memStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestRecordFlushesOnInterval(t *testing.T) {
	mem := &memStore{}
	store := New(mem, Config{FlushInterval: 10 * time.Millisecond})

	for i := 0; i < 5; i++ {
		if err := store.Record(context.Background(), ledger.Entry{UserKey: "u", PromptTokens: 1}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for mem.count() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("entries never flushed: %d", mem.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCloseFlushesPending(t *testing.T) {
	mem := &memStore{}
	store := New(mem, Config{FlushInterval: time.Hour})

	_ = store.Record(context.Background(), ledger.Entry{UserKey: "u", PromptTokens: 2})
	_ = store.Record(context.Background(), ledger.Entry{UserKey: "u", CompletionTokens: 3})

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if mem.count() != 2 {
		t.Fatalf("expected 2 entries after close, got %d", mem.count())
	}
	if !mem.closed {
		t.Fatalf("underlying store not closed")
	}

	summary, err := store.Summary(context.Background(), "u")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.TotalTokens != 5 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
