package ledger

import (
	"context"
	"time"
)

// Entry represents a single usage record written to the local ledger. Keys
// are the resolved per-caller user_key, so generated anonymous keys get their
// own rows.
type Entry struct {
	ID               int64     `json:"id"`
	UserKey          string    `json:"user_key"`
	Model            string    `json:"model"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	Memo             string    `json:"memo"`
	CreatedAt        time.Time `json:"created_at"`
}

// Summary aggregates token usage for one user key.
type Summary struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Store defines persistence behaviour for the ledger.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	Summary(ctx context.Context, userKey string) (Summary, error)
	ListRecent(ctx context.Context, userKey string, limit int) ([]Entry, error)
	Close() error
}
