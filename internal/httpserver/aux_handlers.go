package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/simplifique/simplifique-gateway/internal/openai"
	"github.com/simplifique/simplifique-gateway/internal/version"
)

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"time":           time.Now().UTC().Format(time.RFC3339),
		"failure_policy": string(s.backend.Policy()),
		"error_mode":     string(s.errorMode),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := make([]openai.Model, 0, len(s.knownModels))
	created := s.startedAt.Unix()
	for _, id := range s.knownModels {
		models = append(models, openai.NewModel(id, "simplifique", created))
	}
	s.respondJSON(w, http.StatusOK, openai.NewModelsResponse(models))
}

func (s *Server) handleDebugTest(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "simplifique-gateway",
		"version":        version.Info(),
		"failure_policy": string(s.backend.Policy()),
		"error_mode":     string(s.errorMode),
		"uptime_s":       int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, http.StatusNotFound, errors.New("usage ledger disabled"))
		return
	}
	userKey := strings.TrimSpace(r.URL.Query().Get("user_key"))
	if userKey == "" {
		s.respondError(w, http.StatusBadRequest, errors.New("user_key query parameter required"))
		return
	}
	summary, err := s.ledger.Summary(r.Context(), userKey)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUsageLogs(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, http.StatusNotFound, errors.New("usage ledger disabled"))
		return
	}
	userKey := strings.TrimSpace(r.URL.Query().Get("user_key"))
	if userKey == "" {
		s.respondError(w, http.StatusBadRequest, errors.New("user_key query parameter required"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	entries, err := s.ledger.ListRecent(r.Context(), userKey, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
