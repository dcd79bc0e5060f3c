package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// register sqlite driver
	_ "modernc.org/sqlite"

	"github.com/simplifique/simplifique-gateway/internal/ledger"
)

// Store implements ledger.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite store at the given path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS usage_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_key TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	memo TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_entries_key_created ON usage_entries(user_key, created_at DESC);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases underlying database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a new usage entry.
func (s *Store) Record(ctx context.Context, entry ledger.Entry) error {
	if entry.UserKey == "" {
		return errors.New("ledger record requires user key")
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO usage_entries(user_key, model, prompt_tokens, completion_tokens, memo, created_at)
VALUES(?, ?, ?, ?, ?, ?)`,
		entry.UserKey,
		entry.Model,
		entry.PromptTokens,
		entry.CompletionTokens,
		entry.Memo,
		created,
	)
	return err
}

// Summary returns aggregated usage for the given user key.
func (s *Store) Summary(ctx context.Context, userKey string) (ledger.Summary, error) {
	if userKey == "" {
		return ledger.Summary{}, errors.New("user key required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT
	COALESCE(SUM(prompt_tokens), 0) AS prompt,
	COALESCE(SUM(completion_tokens), 0) AS completion
FROM usage_entries
WHERE user_key = ?`, userKey)

	var prompt, completion sql.NullInt64
	if err := row.Scan(&prompt, &completion); err != nil {
		return ledger.Summary{}, err
	}
	summary := ledger.Summary{
		PromptTokens:     prompt.Int64,
		CompletionTokens: completion.Int64,
	}
	summary.TotalTokens = summary.PromptTokens + summary.CompletionTokens
	return summary, nil
}

// ListRecent returns the latest entries for a user key.
func (s *Store) ListRecent(ctx context.Context, userKey string, limit int) ([]ledger.Entry, error) {
	if userKey == "" {
		return nil, errors.New("user key required")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_key, model, prompt_tokens, completion_tokens, memo, created_at
FROM usage_entries
WHERE user_key = ?
ORDER BY created_at DESC
LIMIT ?`, userKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.ID, &e.UserKey, &e.Model, &e.PromptTokens, &e.CompletionTokens, &e.Memo, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
