package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const configFile = "config/gateway.ini"

// GatewayConfig describes runtime options for the gateway daemon. It is
// constructed once at startup and passed into the components that need it;
// nothing reads configuration after that.
type GatewayConfig struct {
	ListenPort     int
	BackendBaseURL string
	RequestTimeout time.Duration
	// FailurePolicy selects how backend failures are handled: "resilient"
	// absorbs them into a synthetic answer, "strict" surfaces them.
	FailurePolicy string
	// ErrorMode selects how normalization failures are reported: "envelope"
	// returns a structured error with an HTTP status, "embedded" returns a
	// 200 completion carrying the error text.
	ErrorMode string
	// DefaultModel is echoed in completions when the request omits model.
	DefaultModel string
	LogFile      string
	LogLevel     string
	// Usage ledger (local SQLite). Disabled by default.
	LedgerEnabled bool
	LedgerPath    string
	// Optional YAML overlay extending the known-model set.
	KnownModelsFile string
	ExtraModels     []string
}

// Load reads config/gateway.ini under root (missing file is fine) and applies
// SIMPLIFIQUE_* environment overrides on top.
func Load(root string) (GatewayConfig, error) {
	if root == "" {
		root = "."
	}
	values, err := parseINI(filepath.Join(root, configFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			values = map[string]string{}
		} else {
			return GatewayConfig{}, err
		}
	}

	cfg := GatewayConfig{
		ListenPort:      parseOptionalInt(firstNonEmpty(os.Getenv("SIMPLIFIQUE_PORT"), values["port"]), 8787),
		BackendBaseURL:  firstNonEmpty(os.Getenv("SIMPLIFIQUE_BASE_URL"), values["base_url"], "https://app.simplifique.ai/api/v1"),
		FailurePolicy:   normalizeFailurePolicy(firstNonEmpty(os.Getenv("SIMPLIFIQUE_FAILURE_POLICY"), values["failure_policy"])),
		ErrorMode:       normalizeErrorMode(firstNonEmpty(os.Getenv("SIMPLIFIQUE_ERROR_MODE"), values["error_mode"])),
		DefaultModel:    firstNonEmpty(os.Getenv("SIMPLIFIQUE_DEFAULT_MODEL"), values["default_model"], "simplifique-default"),
		LogFile:         firstNonEmpty(os.Getenv("SIMPLIFIQUE_LOG_FILE"), values["log_file"]),
		LogLevel:        firstNonEmpty(os.Getenv("SIMPLIFIQUE_LOG_LEVEL"), values["log_level"], "info"),
		LedgerEnabled:   parseOptionalBool(firstNonEmpty(os.Getenv("SIMPLIFIQUE_LEDGER_ENABLED"), values["ledger_enabled"]), false),
		LedgerPath:      firstNonEmpty(os.Getenv("SIMPLIFIQUE_LEDGER_PATH"), values["ledger_path"], DefaultLedgerPath()),
		KnownModelsFile: firstNonEmpty(os.Getenv("SIMPLIFIQUE_KNOWN_MODELS_FILE"), values["known_models_file"]),
	}

	timeoutRaw := firstNonEmpty(os.Getenv("SIMPLIFIQUE_REQUEST_TIMEOUT"), values["request_timeout"], "30s")
	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutRaw))
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("invalid request_timeout %q: %w", timeoutRaw, err)
	}
	cfg.RequestTimeout = timeout

	if cfg.KnownModelsFile != "" {
		extras, err := LoadKnownModels(cfg.KnownModelsFile)
		if err != nil {
			return GatewayConfig{}, err
		}
		cfg.ExtraModels = extras
	}

	return cfg, nil
}

func normalizeFailurePolicy(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return "strict"
	default:
		return "resilient"
	}
}

func normalizeErrorMode(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "embedded":
		return "embedded"
	default:
		return "envelope"
	}
}

func parseINI(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		values[strings.ToLower(key)] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func parseOptionalBool(v string, fallback bool) bool {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return parseBool(v)
}

func parseOptionalInt(v string, fallback int) int {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return parsed
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DefaultLedgerPath returns the fallback ledger location under the user's home directory.
func DefaultLedgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ledger.db"
	}
	return filepath.Join(home, ".simplifique-gateway", "ledger.db")
}
