package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies gateway failures. Auth and validation failures are detected
// before any outbound call; upstream failures come from the Simplifique
// backend; everything unexpected is internal.
type Kind int

const (
	KindAuth Kind = iota
	KindValidation
	KindUpstream
	KindInternal
)

// Error is the typed failure returned by normalization and the upstream
// client. UpstreamStatus and UpstreamBody are populated only for KindUpstream
// when the backend answered at all.
type Error struct {
	Kind           Kind
	Message        string
	UpstreamStatus int
	UpstreamBody   []byte
	wrapped        error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// Auth reports a malformed or missing Authorization header.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// Validation reports a request that parsed but failed a lexical or
// structural check.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Upstream reports a non-2xx response from the backend. body may be nil.
func Upstream(status int, body []byte) *Error {
	return &Error{
		Kind:           KindUpstream,
		Message:        fmt.Sprintf("simplifique upstream returned %d", status),
		UpstreamStatus: status,
		UpstreamBody:   body,
	}
}

// UpstreamTransport reports a network failure or timeout talking to the backend.
func UpstreamTransport(err error) *Error {
	return &Error{Kind: KindUpstream, Message: "simplifique upstream unreachable", wrapped: err}
}

// Internal wraps anything unexpected, e.g. malformed backend JSON.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal gateway error", wrapped: err}
}

// Envelope is the structured error body returned to callers, shaped like
// OpenAI's error object.
type Envelope struct {
	Error EnvelopeBody `json:"error"`
}

// EnvelopeBody holds the error message, its OpenAI-style type string and
// optional upstream details.
type EnvelopeBody struct {
	Message string   `json:"message"`
	Type    string   `json:"type"`
	Details []string `json:"details,omitempty"`
}

// upstreamErrorBody is the subset of the backend's error payload the gateway
// inspects: a human-readable detail plus an optional list of field errors.
type upstreamErrorBody struct {
	Detail string   `json:"detail"`
	Errors []string `json:"errors"`
}

const defaultAuthMessage = "invalid API token for simplifique.ai"

// Translate maps a gateway failure onto an HTTP status and error envelope.
// Unknown error values are treated as internal failures so that every code
// path still yields a parseable body.
func Translate(err error) (int, Envelope) {
	var ge *Error
	if !errors.As(err, &ge) {
		ge = Internal(err)
	}

	switch ge.Kind {
	case KindAuth:
		return http.StatusUnauthorized, envelope(ge.Message, "authentication_error", nil)
	case KindValidation:
		return http.StatusBadRequest, envelope(ge.Message, "invalid_request_error", nil)
	case KindUpstream:
		return translateUpstream(ge)
	default:
		return http.StatusInternalServerError, envelope(ge.Error(), "api_error", nil)
	}
}

func translateUpstream(ge *Error) (int, Envelope) {
	var body upstreamErrorBody
	if len(ge.UpstreamBody) > 0 {
		_ = json.Unmarshal(ge.UpstreamBody, &body)
	}

	switch ge.UpstreamStatus {
	case http.StatusUnauthorized:
		msg := body.Detail
		if msg == "" {
			msg = defaultAuthMessage
		}
		return http.StatusUnauthorized, envelope(msg, "authentication_error", nil)
	case http.StatusBadRequest:
		msg := body.Detail
		if msg == "" {
			msg = "simplifique rejected the request"
		}
		return http.StatusBadRequest, envelope(msg, "invalid_request_error", body.Errors)
	default:
		return http.StatusBadGateway, envelope(ge.Error(), "api_error", nil)
	}
}

func envelope(message, typ string, details []string) Envelope {
	return Envelope{Error: EnvelopeBody{Message: message, Type: typ, Details: details}}
}
