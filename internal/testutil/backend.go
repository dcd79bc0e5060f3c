package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeBackend is an in-process stand-in for the Simplifique message API. It
// records every request body it sees and answers with a configurable reply.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []map[string]any

	// Answer and ChatID form the success reply.
	Answer string
	ChatID *string
	// Status overrides the response status when non-zero; the body is then
	// ErrorBody verbatim.
	Status    int
	ErrorBody string
}

// NewFakeBackend starts a fake Simplifique server answering POST /message/.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{Answer: "ok"}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/message/" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.requests = append(fb.requests, body)
		status, errBody := fb.Status, fb.ErrorBody
		answer, chatID := fb.Answer, fb.ChatID
		fb.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(errBody))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"answer": answer, "chat_id": chatID},
		})
	}))
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL returns the fake backend's base URL.
func (fb *FakeBackend) URL() string { return fb.Server.URL }

// Requests returns a copy of the request bodies received so far.
func (fb *FakeBackend) Requests() []map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]map[string]any, len(fb.requests))
	copy(out, fb.requests)
	return out
}

// SetFailure makes subsequent requests fail with the given status and body.
func (fb *FakeBackend) SetFailure(status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.Status = status
	fb.ErrorBody = body
}
