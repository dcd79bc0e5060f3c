package normalizer

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/simplifique/simplifique-gateway/internal/apierror"
	"github.com/simplifique/simplifique-gateway/internal/openai"
)

// Query is the canonical form of an inbound chat request after header and
// body normalization. Query and UserKey are always non-empty; SystemPrompt
// may be empty.
type Query struct {
	Query        string
	SystemPrompt string
	UserKey      string
	ChatbotUUID  string
	APIToken     string
}

// DefaultKnownModels is the fixed set of model names the gateway recognizes.
// Any other value in the request's model field is treated as a tunneled
// user key, not a model selection.
var DefaultKnownModels = []string{
	"gpt-3.5-turbo",
	"gpt-4",
	"gpt-4o",
	"simplifique-default",
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Normalizer converts inbound headers and bodies into a Query. It holds the
// known-model set, which may be extended (never shrunk) by configuration.
type Normalizer struct {
	knownModels map[string]struct{}
}

// New creates a Normalizer recognizing the default model set plus any extras.
func New(extraKnownModels ...string) *Normalizer {
	known := make(map[string]struct{}, len(DefaultKnownModels)+len(extraKnownModels))
	for _, m := range DefaultKnownModels {
		known[m] = struct{}{}
	}
	for _, m := range extraKnownModels {
		m = strings.TrimSpace(m)
		if m != "" {
			known[m] = struct{}{}
		}
	}
	return &Normalizer{knownModels: known}
}

// Normalize parses the Authorization header and the decoded request body into
// a Query. Auth and validation failures are reported as typed errors and
// never reach the backend.
func (n *Normalizer) Normalize(header http.Header, req openai.ChatCompletionRequest) (Query, error) {
	apiToken, chatbotUUID, err := parseAuthorization(header.Get("Authorization"))
	if err != nil {
		return Query{}, err
	}
	if !uuidPattern.MatchString(chatbotUUID) {
		return Query{}, apierror.Validation("invalid uuid")
	}

	messages, legacyText, isLegacy, err := decodeMessages(req.Messages)
	if err != nil {
		return Query{}, err
	}

	var query, systemPrompt, embeddedKey string
	if isLegacy {
		sections := parseLegacyString(legacyText)
		query = sections.Query
		systemPrompt = sections.SystemPrompt
		embeddedKey = sections.UserKey
	} else {
		query, systemPrompt = extractFromMessages(messages)
	}
	if query == "" {
		return Query{}, apierror.Validation("no user message found")
	}

	return Query{
		Query:        query,
		SystemPrompt: systemPrompt,
		UserKey:      n.resolveUserKey(embeddedKey, req, header),
		ChatbotUUID:  chatbotUUID,
		APIToken:     apiToken,
	}, nil
}

// parseAuthorization splits "Bearer <apiToken>:<chatbotUuid>" on the first
// colon after the scheme word.
func parseAuthorization(header string) (apiToken, chatbotUUID string, err error) {
	if strings.TrimSpace(header) == "" {
		return "", "", apierror.Auth("missing Authorization header")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", "", apierror.Auth("Authorization header must use the Bearer scheme")
	}
	token, uuid, _ := strings.Cut(strings.TrimPrefix(header, prefix), ":")
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", apierror.Auth("empty api token in Authorization header")
	}
	return token, strings.TrimSpace(uuid), nil
}

// decodeMessages performs the tagged-variant check once: either an array of
// role/content objects, or a single-element array holding one legacy string.
func decodeMessages(raw json.RawMessage) (messages []openai.ChatMessage, legacyText string, isLegacy bool, err error) {
	if len(raw) == 0 {
		return nil, "", false, apierror.Validation("no user message found")
	}
	var elems []json.RawMessage
	if jsonErr := json.Unmarshal(raw, &elems); jsonErr != nil {
		return nil, "", false, apierror.Validation(fmt.Sprintf("messages must be an array: %v", jsonErr))
	}
	if len(elems) == 1 {
		var s string
		if json.Unmarshal(elems[0], &s) == nil {
			return nil, s, true, nil
		}
	}
	messages = make([]openai.ChatMessage, 0, len(elems))
	for _, elem := range elems {
		var msg openai.ChatMessage
		if jsonErr := json.Unmarshal(elem, &msg); jsonErr != nil {
			return nil, "", false, apierror.Validation(fmt.Sprintf("malformed message object: %v", jsonErr))
		}
		messages = append(messages, msg)
	}
	return messages, "", false, nil
}

// extractFromMessages takes the first non-empty system message as the system
// prompt and the last message with non-empty content as the query.
func extractFromMessages(messages []openai.ChatMessage) (query, systemPrompt string) {
	for _, msg := range messages {
		if msg.Role == "system" && strings.TrimSpace(msg.Content) != "" {
			systemPrompt = msg.Content
			break
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if content := strings.TrimSpace(messages[i].Content); content != "" {
			query = content
			break
		}
	}
	return query, systemPrompt
}

// resolveUserKey walks the precedence chain; the first non-empty value wins.
// A model name outside the known set is a caller identifier tunneled through
// the model field.
func (n *Normalizer) resolveUserKey(embeddedKey string, req openai.ChatCompletionRequest, header http.Header) string {
	if key := strings.TrimSpace(embeddedKey); key != "" {
		return key
	}
	if model := strings.TrimSpace(req.Model); model != "" {
		if _, known := n.knownModels[model]; !known {
			return model
		}
	}
	if key := strings.TrimSpace(req.User); key != "" {
		return key
	}
	if key := strings.TrimSpace(header.Get("x-user-key")); key != "" {
		return key
	}
	if key := strings.TrimSpace(header.Get("x-user-id")); key != "" {
		return key
	}
	return generateUserKey()
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateUserKey fabricates an anonymous per-request key in the historical
// n8n-<unix-millis>-<random> form.
func generateUserKey() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36Alphabet[rand.IntN(len(base36Alphabet))]
	}
	return fmt.Sprintf("n8n-%d-%s", time.Now().UnixMilli(), suffix)
}
