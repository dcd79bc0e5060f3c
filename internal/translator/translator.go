package translator

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/simplifique/simplifique-gateway/internal/openai"
	"github.com/simplifique/simplifique-gateway/internal/simplifique"
)

// ServiceName identifies the backend in completion metadata.
const ServiceName = "simplifique.ai"

// functionCallMarker opens an embedded function call in the backend's
// free-text answer; it must stand on its own line at the start of the text,
// followed by the function name and the raw argument text.
const functionCallMarker = "[FUNCTION_CALL]"

// EstimateTokens approximates a token count as ceil(characters/4). This is a
// deliberate coarse approximation, not a tokenizer.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// ExtractFunctionCall applies the embedded function-call grammar to an
// answer. When the marker matches, it returns the function name and the raw
// argument text; arguments that look like a JSON object but fail to parse
// cancel the match so the whole answer stays plain content.
func ExtractFunctionCall(answer string) (name, arguments string, ok bool) {
	trimmed := strings.TrimSpace(answer)
	if !strings.HasPrefix(trimmed, functionCallMarker) {
		return "", "", false
	}
	rest := trimmed[len(functionCallMarker):]
	if line, remainder, found := strings.Cut(rest, "\n"); found {
		// marker must stand on its own line
		if strings.TrimSpace(line) != "" {
			return "", "", false
		}
		rest = remainder
	} else if strings.TrimSpace(rest) != "" {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)

	end := 0
	for end < len(rest) && isWordByte(rest[end]) {
		end++
	}
	name = rest[:end]
	if name == "" {
		return "", "", false
	}
	arguments = strings.TrimSpace(rest[end:])

	if strings.HasPrefix(arguments, "{") && strings.HasSuffix(arguments, "}") {
		if !json.Valid([]byte(arguments)) {
			return "", "", false
		}
	}
	return name, arguments, true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Translate converts a backend answer into an OpenAI-shaped completion for
// the given normalized query. The completion-token count is computed from
// the text actually placed in the message (post-extraction), and the prompt
// count from the query text.
func Translate(answer simplifique.Answer, query, model, chatbotUUID string) openai.ChatCompletionResponse {
	message := openai.ChatMessage{Role: "assistant", Content: answer.Answer}
	completionText := answer.Answer

	if name, args, ok := ExtractFunctionCall(answer.Answer); ok {
		message.Content = ""
		completionText = ""
		message.ToolCalls = []openai.ToolCall{{
			ID:   "tool1",
			Type: "function",
			Function: openai.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		}}
	}

	return NewCompletion(model, chatbotUUID, message, usage(query, completionText), answer.ChatID)
}

// ErrorCompletion builds a well-formed completion whose content carries an
// error message, for the embedded error mode.
func ErrorCompletion(model, chatbotUUID, query, errorMessage string) openai.ChatCompletionResponse {
	content := "Error: " + errorMessage
	message := openai.ChatMessage{Role: "assistant", Content: content}
	return NewCompletion(model, chatbotUUID, message, usage(query, content), nil)
}

// NewCompletion assembles the outgoing completion envelope around a message.
func NewCompletion(model, chatbotUUID string, message openai.ChatMessage, usage openai.UsageBreakdown, chatID *string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:                "chatcmpl-" + uuid.NewString(),
		Object:            "chat.completion",
		Created:           time.Now().Unix(),
		Model:             model,
		SystemFingerprint: "simplifique_" + chatbotUUID,
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			FinishReason: "stop",
			Message:      message,
			Logprobs:     nil,
		}},
		Usage: usage,
		Metadata: &openai.CompletionMetadata{
			SimplifiqueChatID: chatID,
			Service:           ServiceName,
		},
	}
}

func usage(query, completion string) openai.UsageBreakdown {
	prompt := EstimateTokens(query)
	completionTokens := EstimateTokens(completion)
	return openai.UsageBreakdown{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
	}
}
