package openai

import "encoding/json"

// ChatCompletionRequest captures the subset of OpenAI's chat request the
// gateway accepts. Messages stays raw because two inbound shapes are
// supported: an array of role/content objects, or a single-element array
// holding one legacy-format string. The normalizer decides which one it is.
type ChatCompletionRequest struct {
	Model    string          `json:"model,omitempty"`
	Messages json.RawMessage `json:"messages"`
	User     string          `json:"user,omitempty"`
}

// ChatMessage follows OpenAI's role/content schema (plain text only).
type ChatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a structured function invocation attached to an assistant message.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its raw argument text.
// Arguments is forwarded verbatim, never re-serialized.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatCompletionResponse mirrors the OpenAI schema with a single choice.
type ChatCompletionResponse struct {
	ID                string                 `json:"id"`
	Object            string                 `json:"object"`
	Created           int64                  `json:"created"`
	Model             string                 `json:"model"`
	SystemFingerprint string                 `json:"system_fingerprint,omitempty"`
	Choices           []ChatCompletionChoice `json:"choices"`
	Usage             UsageBreakdown         `json:"usage"`
	Metadata          *CompletionMetadata    `json:"metadata,omitempty"`
}

// ChatCompletionChoice contains the generated message.
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      ChatMessage `json:"message"`
	Logprobs     interface{} `json:"logprobs"`
}

// UsageBreakdown provides token accounting. Counts are a coarse
// character-based approximation, not a model tokenizer count.
type UsageBreakdown struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionMetadata carries gateway-specific fields alongside the standard
// completion object. SimplifiqueChatID is null when the backend did not
// return a chat session (or when the answer is synthetic).
type CompletionMetadata struct {
	SimplifiqueChatID *string `json:"simplifique_chat_id"`
	Service           string  `json:"service"`
}
