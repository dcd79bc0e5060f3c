package normalizer

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/simplifique/simplifique-gateway/internal/apierror"
	"github.com/simplifique/simplifique-gateway/internal/openai"
)

const testUUID = "123e4567-e89b-42d3-a456-426614174000"

func authHeader(token, uuid string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token+":"+uuid)
	return h
}

func arrayRequest(t *testing.T, model string, msgs ...openai.ChatMessage) openai.ChatCompletionRequest {
	t.Helper()
	raw, err := json.Marshal(msgs)
	if err != nil {
		t.Fatalf("marshal messages: %v", err)
	}
	return openai.ChatCompletionRequest{Model: model, Messages: raw}
}

func legacyRequest(t *testing.T, text string) openai.ChatCompletionRequest {
	t.Helper()
	raw, err := json.Marshal([]string{text})
	if err != nil {
		t.Fatalf("marshal legacy string: %v", err)
	}
	return openai.ChatCompletionRequest{Messages: raw}
}

func errKind(t *testing.T, err error) apierror.Kind {
	t.Helper()
	var ge *apierror.Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected *apierror.Error, got %T (%v)", err, err)
	}
	return ge.Kind
}

func TestNormalizeArrayVariant(t *testing.T) {
	n := New()
	req := arrayRequest(t, "gpt-4",
		openai.ChatMessage{Role: "system", Content: "Be helpful."},
		openai.ChatMessage{Role: "user", Content: "  What's the weather?  "},
	)
	q, err := n.Normalize(authHeader("tok123", testUUID), req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if q.Query != "What's the weather?" {
		t.Fatalf("unexpected query %q", q.Query)
	}
	if q.SystemPrompt != "Be helpful." {
		t.Fatalf("unexpected system prompt %q", q.SystemPrompt)
	}
	if q.APIToken != "tok123" || q.ChatbotUUID != testUUID {
		t.Fatalf("unexpected credentials %q %q", q.APIToken, q.ChatbotUUID)
	}
}

func TestNormalizeLastNonEmptyMessageWins(t *testing.T) {
	n := New()
	req := arrayRequest(t, "gpt-4",
		openai.ChatMessage{Role: "user", Content: "first"},
		openai.ChatMessage{Role: "assistant", Content: "second"},
		openai.ChatMessage{Role: "user", Content: "   "},
	)
	q, err := n.Normalize(authHeader("tok", testUUID), req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if q.Query != "second" {
		t.Fatalf("expected last non-empty content, got %q", q.Query)
	}
}

func TestNormalizeAuthFailures(t *testing.T) {
	n := New()
	req := arrayRequest(t, "", openai.ChatMessage{Role: "user", Content: "hi"})

	cases := []struct {
		name   string
		header string
		kind   apierror.Kind
	}{
		{"missing", "", apierror.KindAuth},
		{"wrong scheme", "Token abc:" + testUUID, apierror.KindAuth},
		{"empty token", "Bearer :" + testUUID, apierror.KindAuth},
		{"bad uuid", "Bearer tok:not-a-uuid", apierror.KindValidation},
		{"missing uuid", "Bearer tok", apierror.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.header != "" {
				h.Set("Authorization", tc.header)
			}
			_, err := n.Normalize(h, req)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errKind(t, err); got != tc.kind {
				t.Fatalf("expected kind %v, got %v", tc.kind, got)
			}
		})
	}
}

func TestNormalizeUppercaseUUIDAccepted(t *testing.T) {
	n := New()
	req := arrayRequest(t, "", openai.ChatMessage{Role: "user", Content: "hi"})
	upper := "123E4567-E89B-42D3-A456-426614174000"
	q, err := n.Normalize(authHeader("tok", upper), req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if q.ChatbotUUID != upper {
		t.Fatalf("unexpected uuid %q", q.ChatbotUUID)
	}
}

func TestNormalizeNoUserMessage(t *testing.T) {
	n := New()
	req := arrayRequest(t, "gpt-4", openai.ChatMessage{Role: "user", Content: "   "})
	_, err := n.Normalize(authHeader("tok", testUUID), req)
	if err == nil || errKind(t, err) != apierror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUserKeyPrecedenceModelTunnel(t *testing.T) {
	n := New()
	req := arrayRequest(t, "custom-agent-7", openai.ChatMessage{Role: "user", Content: "hi"})
	q, err := n.Normalize(authHeader("tok", testUUID), req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if q.UserKey != "custom-agent-7" {
		t.Fatalf("expected model to tunnel user key, got %q", q.UserKey)
	}
}

func TestUserKeyPrecedenceKnownModelGeneratesKey(t *testing.T) {
	n := New()
	req := arrayRequest(t, "gpt-4", openai.ChatMessage{Role: "user", Content: "hi"})
	q, err := n.Normalize(authHeader("tok", testUUID), req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !regexp.MustCompile(`^n8n-\d+-[0-9a-z]{9}$`).MatchString(q.UserKey) {
		t.Fatalf("generated key %q does not match expected form", q.UserKey)
	}
}

func TestUserKeyPrecedenceUserFieldBeatsHeaders(t *testing.T) {
	n := New()
	req := arrayRequest(t, "gpt-4", openai.ChatMessage{Role: "user", Content: "hi"})
	req.User = "user-field"
	h := authHeader("tok", testUUID)
	h.Set("x-user-key", "header-key")
	h.Set("x-user-id", "header-id")
	q, err := n.Normalize(h, req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if q.UserKey != "user-field" {
		t.Fatalf("expected user field to win, got %q", q.UserKey)
	}
}

func TestUserKeyPrecedenceHeaderOrder(t *testing.T) {
	n := New()
	req := arrayRequest(t, "gpt-4", openai.ChatMessage{Role: "user", Content: "hi"})

	h := authHeader("tok", testUUID)
	h.Set("x-user-key", "header-key")
	h.Set("x-user-id", "header-id")
	q, err := n.Normalize(h, req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if q.UserKey != "header-key" {
		t.Fatalf("expected x-user-key to beat x-user-id, got %q", q.UserKey)
	}

	h = authHeader("tok", testUUID)
	h.Set("x-user-id", "header-id")
	q, err = n.Normalize(h, req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if q.UserKey != "header-id" {
		t.Fatalf("expected x-user-id fallback, got %q", q.UserKey)
	}
}

func TestUserKeyPrecedenceEmbeddedKeyWinsOverAll(t *testing.T) {
	n := New()
	req := legacyRequest(t, "System: S\nContexto Extra Human:\nQuery: q\nuser_key: embedded")
	req.Model = "custom-agent-7"
	req.User = "user-field"
	h := authHeader("tok", testUUID)
	h.Set("x-user-key", "header-key")
	q, err := n.Normalize(h, req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if q.UserKey != "embedded" {
		t.Fatalf("expected embedded key to win, got %q", q.UserKey)
	}
}

func TestExtraKnownModelsExtendSet(t *testing.T) {
	n := New("acme-llm")
	req := arrayRequest(t, "acme-llm", openai.ChatMessage{Role: "user", Content: "hi"})
	q, err := n.Normalize(authHeader("tok", testUUID), req)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if q.UserKey == "acme-llm" {
		t.Fatalf("extra known model must not tunnel as user key")
	}
}
