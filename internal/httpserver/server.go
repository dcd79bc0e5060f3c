package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/simplifique/simplifique-gateway/internal/ledger"
	"github.com/simplifique/simplifique-gateway/internal/normalizer"
	"github.com/simplifique/simplifique-gateway/internal/simplifique"
)

// Backend is the upstream side of the gateway: one call per inbound request.
type Backend interface {
	SendMessage(ctx context.Context, q normalizer.Query) (simplifique.Answer, error)
	Policy() simplifique.FailurePolicy
}

// ErrorMode selects how failures caught before the backend call are reported.
type ErrorMode string

const (
	// ErrorModeEnvelope returns a structured error object with an HTTP
	// error status.
	ErrorModeEnvelope ErrorMode = "envelope"
	// ErrorModeEmbedded always returns HTTP 200 with a completion whose
	// content carries the error text.
	ErrorModeEmbedded ErrorMode = "embedded"
)

// Options configures a Server.
type Options struct {
	Normalizer   *normalizer.Normalizer
	Backend      Backend
	Ledger       ledger.Store
	Logger       *log.Logger
	LogLevel     string
	ErrorMode    ErrorMode
	DefaultModel string
	// KnownModels is the model list served by /v1/models.
	KnownModels []string
}

// Server exposes the OpenAI-compatible REST surface of the gateway.
type Server struct {
	normalizer   *normalizer.Normalizer
	backend      Backend
	ledger       ledger.Store
	logger       *log.Logger
	logLevel     string
	errorMode    ErrorMode
	defaultModel string
	knownModels  []string
	startedAt    time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	mode := opts.ErrorMode
	if mode != ErrorModeEmbedded {
		mode = ErrorModeEnvelope
	}
	norm := opts.Normalizer
	if norm == nil {
		norm = normalizer.New()
	}
	return &Server{
		normalizer:   norm,
		backend:      opts.Backend,
		ledger:       opts.Ledger,
		logger:       opts.Logger,
		logLevel:     strings.ToLower(strings.TrimSpace(opts.LogLevel)),
		errorMode:    mode,
		defaultModel: opts.DefaultModel,
		knownModels:  opts.KnownModels,
		startedAt:    time.Now(),
	}
}

// Router returns a configured chi router for embedding in HTTP servers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/v1/chat/completions", s.handleChatCompletions)
	r.Get("/v1/models", s.handleModels)
	r.Get("/health", s.HandleHealth)
	r.Get("/debug/test", s.handleDebugTest)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/usage/summary", s.handleUsageSummary)
		api.Get("/usage/logs", s.handleUsageLogs)
	})

	return r
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	s.respondJSON(w, status, map[string]any{"error": err.Error()})
}

func (s *Server) isDebug() bool {
	return s.logLevel == "debug" || s.logLevel == "trace"
}

func (s *Server) debugf(format string, args ...any) {
	if s.logger != nil && s.isDebug() {
		s.logger.Printf("DEBUG "+format, args...)
	}
}
