package simplifique

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/simplifique/simplifique-gateway/internal/apierror"
	"github.com/simplifique/simplifique-gateway/internal/normalizer"
	"github.com/simplifique/simplifique-gateway/internal/testutil"
)

func testQuery() normalizer.Query {
	return normalizer.Query{
		Query:       "hello",
		UserKey:     "u1",
		ChatbotUUID: "123e4567-e89b-42d3-a456-426614174000",
		APIToken:    "tok",
	}
}

func TestSendMessageWireFormat(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Answer = "oi"

	client, err := New(Config{BaseURL: fb.URL(), Policy: PolicyStrict})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	q := testQuery()
	q.SystemPrompt = "Be nice."
	answer, err := client.SendMessage(context.Background(), q)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if answer.Answer != "oi" {
		t.Fatalf("unexpected answer %q", answer.Answer)
	}

	reqs := fb.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one upstream call, got %d", len(reqs))
	}
	body := reqs[0]
	if body["chatbot_uuid"] != q.ChatbotUUID || body["query"] != "hello" || body["user_key"] != "u1" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["custom_base_system_prompt"] != "Be nice." {
		t.Fatalf("expected system prompt in body, got %v", body)
	}
}

func TestSendMessageOmitsEmptySystemPrompt(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	client, err := New(Config{BaseURL: fb.URL(), Policy: PolicyStrict})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	q := testQuery()
	q.SystemPrompt = "   "
	if _, err := client.SendMessage(context.Background(), q); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	body := fb.Requests()[0]
	if _, present := body["custom_base_system_prompt"]; present {
		t.Fatalf("custom_base_system_prompt must be absent, got %v", body)
	}
}

func TestSendMessageUsesTokenScheme(t *testing.T) {
	var gotAuth, gotAccept string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"data":{"answer":"ok","chat_id":null}}`))
	}))
	defer backend.Close()

	client, err := New(Config{BaseURL: backend.URL, Policy: PolicyStrict})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.SendMessage(context.Background(), testQuery()); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotAuth != "Token tok" {
		t.Fatalf("outbound auth must use the Token scheme, got %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Fatalf("unexpected Accept header %q", gotAccept)
	}
}

func TestStrictPolicySurfacesUpstreamStatus(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.SetFailure(http.StatusUnauthorized, `{"detail":"bad token"}`)

	client, err := New(Config{BaseURL: fb.URL(), Policy: PolicyStrict})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.SendMessage(context.Background(), testQuery())
	var ge *apierror.Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected *apierror.Error, got %v", err)
	}
	if ge.Kind != apierror.KindUpstream || ge.UpstreamStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected error %+v", ge)
	}
	if string(ge.UpstreamBody) != `{"detail":"bad token"}` {
		t.Fatalf("upstream body not carried: %q", ge.UpstreamBody)
	}
}

func TestResilientPolicyAbsorbsFailures(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.SetFailure(http.StatusInternalServerError, "boom")

	client, err := New(Config{BaseURL: fb.URL(), Policy: PolicyResilient})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	answer, err := client.SendMessage(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("resilient mode must not surface errors, got %v", err)
	}
	if answer.Answer != FallbackAnswer {
		t.Fatalf("unexpected answer %q", answer.Answer)
	}
	if answer.ChatID != nil {
		t.Fatalf("synthetic answer must carry a nil chat id")
	}
}

func TestResilientPolicyAbsorbsTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer backend.Close()

	client, err := New(Config{BaseURL: backend.URL, RequestTimeout: 20 * time.Millisecond, Policy: PolicyResilient})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	answer, err := client.SendMessage(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("timeout must be absorbed, got %v", err)
	}
	if answer.Answer != FallbackAnswer {
		t.Fatalf("unexpected answer %q", answer.Answer)
	}
}

func TestStrictPolicySurfacesTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer backend.Close()

	client, err := New(Config{BaseURL: backend.URL, RequestTimeout: 20 * time.Millisecond, Policy: PolicyStrict})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.SendMessage(context.Background(), testQuery())
	var ge *apierror.Error
	if !errors.As(err, &ge) || ge.Kind != apierror.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestResilientIsDefaultPolicy(t *testing.T) {
	client, err := New(Config{BaseURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.Policy() != PolicyResilient {
		t.Fatalf("default policy must be resilient, got %s", client.Policy())
	}
}

func TestCallerDisconnectAbortsCall(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer backend.Close()
	defer close(release)

	client, err := New(Config{BaseURL: backend.URL, Policy: PolicyStrict})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	if _, err := client.SendMessage(ctx, testQuery()); err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancellation did not abort the outbound call")
	}
}
