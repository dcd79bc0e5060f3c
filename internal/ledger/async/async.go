package async

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/simplifique/simplifique-gateway/internal/ledger"
)

// Store wraps a ledger.Store with buffered background writes so the request
// path never waits on the database. Entries still queued when the process
// dies are lost; the ledger is an observability aid, not an account book.
type Store struct {
	underlying ledger.Store
	entries    chan ledger.Entry
	flushEvery time.Duration
	logger     *log.Logger

	wg   sync.WaitGroup
	stop chan struct{}
}

// Config configures the async wrapper. Zero values get sane defaults.
type Config struct {
	Buffer        int
	FlushInterval time.Duration
	Logger        *log.Logger
}

// New wraps an existing ledger store with background writing.
func New(underlying ledger.Store, cfg Config) *Store {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	s := &Store{
		underlying: underlying,
		entries:    make(chan ledger.Entry, cfg.Buffer),
		flushEvery: cfg.FlushInterval,
		logger:     cfg.Logger,
		stop:       make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

func (s *Store) writer() {
	defer s.wg.Done()

	pending := make([]ledger.Entry, 0, 64)
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	flush := func() {
		for _, entry := range pending {
			if err := s.underlying.Record(context.Background(), entry); err != nil && s.logger != nil {
				s.logger.Printf("async ledger write failed: %v", err)
			}
		}
		pending = pending[:0]
	}

	for {
		select {
		case entry := <-s.entries:
			pending = append(pending, entry)
			if len(pending) >= cap(pending) {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stop:
			// drain without closing; a late Record must not panic
			for {
				select {
				case entry := <-s.entries:
					pending = append(pending, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Record queues an entry without blocking; when the buffer is full the entry
// is dropped.
func (s *Store) Record(ctx context.Context, entry ledger.Entry) error {
	select {
	case s.entries <- entry:
	default:
		if s.logger != nil {
			s.logger.Printf("async ledger buffer full, dropping entry user_key=%s", entry.UserKey)
		}
	}
	return nil
}

// Summary delegates to the underlying store.
func (s *Store) Summary(ctx context.Context, userKey string) (ledger.Summary, error) {
	return s.underlying.Summary(ctx, userKey)
}

// ListRecent delegates to the underlying store.
func (s *Store) ListRecent(ctx context.Context, userKey string, limit int) ([]ledger.Entry, error) {
	return s.underlying.ListRecent(ctx, userKey, limit)
}

// Close flushes queued entries and closes the underlying store.
func (s *Store) Close() error {
	close(s.stop)
	s.wg.Wait()
	return s.underlying.Close()
}
