package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/simplifique/simplifique-gateway/internal/apierror"
	"github.com/simplifique/simplifique-gateway/internal/ledger"
	"github.com/simplifique/simplifique-gateway/internal/openai"
	"github.com/simplifique/simplifique-gateway/internal/translator"
)

// handleChatCompletions runs the full pipeline: normalize, one backend call,
// translate back. Every exit path produces a parseable body in the caller's
// expected schema.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	reqStart := time.Now()

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondFailure(w, "", "", "", apierror.Validation(fmt.Sprintf("read request body: %v", err)))
		return
	}

	var req openai.ChatCompletionRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		s.respondFailure(w, req.Model, "", "", apierror.Validation(fmt.Sprintf("malformed JSON body: %v", err)))
		return
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.defaultModel
	}

	q, err := s.normalizer.Normalize(r.Header, req)
	if err != nil {
		s.respondFailure(w, model, "", "", err)
		return
	}
	s.debugf("chat.completions normalized user_key=%s chatbot=%s", q.UserKey, q.ChatbotUUID)

	upstreamStart := time.Now()
	answer, err := s.backend.SendMessage(r.Context(), q)
	if err != nil {
		// only reachable under the strict failure policy
		s.respondFailure(w, model, q.ChatbotUUID, q.Query, err)
		return
	}
	upstreamDur := time.Since(upstreamStart)

	resp := translator.Translate(answer, q.Query, model, q.ChatbotUUID)
	s.recordUsage(r.Context(), q.UserKey, model, resp.Usage)
	s.respondJSON(w, http.StatusOK, resp)

	if s.logger != nil {
		total := time.Since(reqStart)
		s.logger.Printf("chat.completions total_ms=%d upstream_ms=%d model=%s user_key=%s",
			total.Milliseconds(), upstreamDur.Milliseconds(), model, q.UserKey)
	}
}

// respondFailure reports a pipeline failure in the configured error mode.
// Envelope mode maps the failure to a status and structured error object;
// embedded mode wraps the message in a normal completion so the caller's
// completion parser still succeeds.
func (s *Server) respondFailure(w http.ResponseWriter, model, chatbotUUID, query string, err error) {
	status, envelope := apierror.Translate(err)
	if s.logger != nil {
		s.logger.Printf("chat.completions failed status=%d type=%s message=%q",
			status, envelope.Error.Type, envelope.Error.Message)
	}
	if s.errorMode == ErrorModeEmbedded {
		if model == "" {
			model = s.defaultModel
		}
		s.respondJSON(w, http.StatusOK, translator.ErrorCompletion(model, chatbotUUID, query, envelope.Error.Message))
		return
	}
	s.respondJSON(w, status, envelope)
}

// recordUsage writes a ledger row; ledger failures never fail the request.
func (s *Server) recordUsage(ctx context.Context, userKey, model string, usage openai.UsageBreakdown) {
	if s.ledger == nil {
		return
	}
	entry := ledger.Entry{
		UserKey:          userKey,
		Model:            model,
		PromptTokens:     int64(usage.PromptTokens),
		CompletionTokens: int64(usage.CompletionTokens),
		Memo:             "chat.completions",
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.debugf("ledger record failed: %v", err)
	}
}
