package simplifique

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/simplifique/simplifique-gateway/internal/apierror"
	"github.com/simplifique/simplifique-gateway/internal/normalizer"
)

// FailurePolicy selects how the client reacts to backend failures.
type FailurePolicy string

const (
	// PolicyStrict propagates upstream failures as typed errors.
	PolicyStrict FailurePolicy = "strict"
	// PolicyResilient absorbs upstream failures into a synthetic answer so
	// calling automation pipelines never see a transport error.
	PolicyResilient FailurePolicy = "resilient"
)

// FallbackAnswer replaces the backend's answer when a failure is absorbed
// under PolicyResilient.
const FallbackAnswer = "Desculpe, estou com dificuldades para responder no momento. Por favor, tente novamente em instantes."

const defaultTimeout = 30 * time.Second

// Answer is the translated backend reply. ChatID is nil when the backend did
// not return a chat session or when the answer is synthetic.
type Answer struct {
	Answer string
	ChatID *string
}

// Config holds configuration for the Simplifique client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	Policy         FailurePolicy
}

// Client performs the single outbound call of the gateway: one POST to the
// Simplifique message endpoint per inbound request, no retries.
type Client struct {
	baseURL    string
	policy     FailurePolicy
	httpClient *http.Client
}

// New creates a Simplifique client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("simplifique: base url required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	policy := cfg.Policy
	if policy == "" {
		policy = PolicyResilient
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		policy:  policy,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Policy reports the active failure policy.
func (c *Client) Policy() FailurePolicy { return c.policy }

// messageRequest is the backend wire format. CustomBaseSystemPrompt must be
// absent, not empty, when no system prompt was supplied.
type messageRequest struct {
	ChatbotUUID            string `json:"chatbot_uuid"`
	Query                  string `json:"query"`
	UserKey                string `json:"user_key"`
	CustomBaseSystemPrompt string `json:"custom_base_system_prompt,omitempty"`
}

type messageResponse struct {
	Data struct {
		Answer string  `json:"answer"`
		ChatID *string `json:"chat_id"`
	} `json:"data"`
}

// SendMessage posts the normalized query to the backend and returns its
// answer. Under PolicyResilient every failure is replaced by FallbackAnswer;
// under PolicyStrict failures surface as apierror values. The call is bound
// both by the client timeout and by ctx, so a caller disconnect aborts it.
func (c *Client) SendMessage(ctx context.Context, q normalizer.Query) (Answer, error) {
	answer, err := c.sendMessage(ctx, q)
	if err != nil && c.policy == PolicyResilient {
		return Answer{Answer: FallbackAnswer}, nil
	}
	return answer, err
}

func (c *Client) sendMessage(ctx context.Context, q normalizer.Query) (Answer, error) {
	payload := messageRequest{
		ChatbotUUID:            q.ChatbotUUID,
		Query:                  q.Query,
		UserKey:                q.UserKey,
		CustomBaseSystemPrompt: strings.TrimSpace(q.SystemPrompt),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Answer{}, apierror.Internal(fmt.Errorf("simplifique: marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message/", bytes.NewReader(body))
	if err != nil {
		return Answer{}, apierror.Internal(fmt.Errorf("simplifique: create request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Token "+q.APIToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Answer{}, apierror.UpstreamTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Answer{}, apierror.UpstreamTransport(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Answer{}, apierror.Upstream(resp.StatusCode, respBody)
	}

	var parsed messageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Answer{}, apierror.Internal(fmt.Errorf("simplifique: unmarshal response: %w", err))
	}

	return Answer{Answer: parsed.Data.Answer, ChatID: parsed.Data.ChatID}, nil
}
