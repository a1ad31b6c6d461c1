package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultSplunkBaseURL  = "https://localhost:8089"
	DefaultSplunkUsername = "admin"
	DefaultSplunkPassword = "changeme"
	DefaultOpenAIModel    = "gpt-5"

	DefaultRequestTimeoutSeconds = 45
	DefaultPollSeconds           = 1.0
	DefaultMaxWaitSeconds        = 60
	DefaultMaxResults            = 50
	DefaultSummaryRows           = 20

	DefaultBufSize = 100
	DefaultPort    = 18890
)

type Config struct {
	Splunk      SplunkConfig   `json:"splunk"`
	OpenAI      OpenAIConfig   `json:"openai"`
	Channels    ChannelsConfig `json:"channels"`
	Gateway     GatewayConfig  `json:"gateway"`
	Subscribers []string       `json:"subscribers"`
}

type SplunkConfig struct {
	BaseURL               string  `json:"baseUrl"`
	Username              string  `json:"username"`
	Password              string  `json:"password"`
	VerifyTLS             bool    `json:"verifyTls"`
	RequestTimeoutSeconds int     `json:"requestTimeoutSeconds"`
	PollSeconds           float64 `json:"pollSeconds"`
	MaxWaitSeconds        int     `json:"maxWaitSeconds"`
	MaxResults            int     `json:"maxResults"`
	SummaryRows           int     `json:"summaryRows"`
}

type OpenAIConfig struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
	Model   string `json:"model"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WebUI    WebUIConfig    `json:"webui"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	Proxy   string `json:"proxy,omitempty"`
}

type WebUIConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Token   string `json:"token,omitempty"`
}

type GatewayConfig struct {
	BufSize int `json:"bufSize,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Splunk: SplunkConfig{
			BaseURL:               DefaultSplunkBaseURL,
			Username:              DefaultSplunkUsername,
			Password:              DefaultSplunkPassword,
			VerifyTLS:             false,
			RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
			PollSeconds:           DefaultPollSeconds,
			MaxWaitSeconds:        DefaultMaxWaitSeconds,
			MaxResults:            DefaultMaxResults,
			SummaryRows:           DefaultSummaryRows,
		},
		OpenAI: OpenAIConfig{
			Model: DefaultOpenAIModel,
		},
		Channels: ChannelsConfig{},
		Gateway: GatewayConfig{
			BufSize: DefaultBufSize,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".socbot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// KeysDir is the legacy key-file directory (~/keys) used by the lab
// deployment: telegramkey.json, openaikey.json, subscribers.json and
// splunk.json are read from here when config/env leave a value unset.
func KeysDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "keys")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyKeyFiles(cfg)
	applyEnv(cfg)

	normalized, err := NormalizeSplunkBaseURL(cfg.Splunk.BaseURL)
	if err != nil {
		return nil, err
	}
	cfg.Splunk.BaseURL = normalized

	if cfg.Splunk.RequestTimeoutSeconds <= 0 {
		cfg.Splunk.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if cfg.Splunk.PollSeconds <= 0 {
		cfg.Splunk.PollSeconds = DefaultPollSeconds
	}
	if cfg.Splunk.MaxWaitSeconds <= 0 {
		cfg.Splunk.MaxWaitSeconds = DefaultMaxWaitSeconds
	}
	if cfg.Splunk.MaxResults <= 0 {
		cfg.Splunk.MaxResults = DefaultMaxResults
	}
	if cfg.Splunk.SummaryRows <= 0 {
		cfg.Splunk.SummaryRows = DefaultSummaryRows
	}
	// The summarizer must never see more rows than Splunk returned.
	if cfg.Splunk.SummaryRows > cfg.Splunk.MaxResults {
		cfg.Splunk.SummaryRows = cfg.Splunk.MaxResults
	}
	if cfg.Gateway.BufSize <= 0 {
		cfg.Gateway.BufSize = DefaultBufSize
	}

	return cfg, nil
}

// applyKeyFiles fills credentials and the subscriber list from the
// ~/keys JSON files when the config file left them empty.
func applyKeyFiles(cfg *Config) {
	keysDir := KeysDir()

	if cfg.Channels.Telegram.Token == "" {
		if data := readJSONObject(filepath.Join(keysDir, "telegramkey.json")); data != nil {
			if token := firstString(data, "TELEGRAM_BOT_TOKEN", "telegram_token", "key", "token"); token != "" {
				cfg.Channels.Telegram.Token = token
			}
		}
	}

	if cfg.OpenAI.APIKey == "" {
		if data := readJSONObject(filepath.Join(keysDir, "openaikey.json")); data != nil {
			if key := firstString(data, "OPENAI_API_KEY", "openai_api_key", "api_key", "key"); key != "" {
				cfg.OpenAI.APIKey = key
			}
		}
	}

	if len(cfg.Subscribers) == 0 {
		cfg.Subscribers = readSubscribers(filepath.Join(keysDir, "subscribers.json"))
	}

	if data := readJSONObject(filepath.Join(keysDir, "splunk.json")); data != nil {
		if v := firstString(data, "SPLUNK_BASE_URL", "base_url", "url"); v != "" && cfg.Splunk.BaseURL == DefaultSplunkBaseURL {
			cfg.Splunk.BaseURL = v
		}
		if v := firstString(data, "SPLUNK_USERNAME", "username", "user"); v != "" && cfg.Splunk.Username == DefaultSplunkUsername {
			cfg.Splunk.Username = v
		}
		if v := firstString(data, "SPLUNK_PASSWORD", "password", "pass"); v != "" && cfg.Splunk.Password == DefaultSplunkPassword {
			cfg.Splunk.Password = v
		}
		if raw, ok := data["SPLUNK_VERIFY_TLS"]; ok {
			cfg.Splunk.VerifyTLS = toBool(raw, cfg.Splunk.VerifyTLS)
		}
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SPLUNK_BASE_URL"); v != "" {
		cfg.Splunk.BaseURL = v
	}
	if v := os.Getenv("SPLUNK_USERNAME"); v != "" {
		cfg.Splunk.Username = v
	}
	if v := os.Getenv("SPLUNK_PASSWORD"); v != "" {
		cfg.Splunk.Password = v
	}
	if v := os.Getenv("SPLUNK_VERIFY_TLS"); v != "" {
		cfg.Splunk.VerifyTLS = toBool(v, cfg.Splunk.VerifyTLS)
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Splunk.RequestTimeoutSeconds = parsed
		}
	}
	if v := os.Getenv("SPLUNK_QUERY_POLL_SECONDS"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Splunk.PollSeconds = parsed
		}
	}
	if v := os.Getenv("SPLUNK_QUERY_MAX_WAIT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Splunk.MaxWaitSeconds = parsed
		}
	}
	if v := os.Getenv("SPLUNK_MAX_RESULTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Splunk.MaxResults = parsed
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("SOCBOT_TELEGRAM_TOKEN"); v != "" {
		cfg.Channels.Telegram.Token = v
	}
	if v := os.Getenv("SOCBOT_WEBUI_TOKEN"); v != "" {
		cfg.Channels.WebUI.Token = v
	}
}

// NormalizeSplunkBaseURL validates the management URL and strips any
// path. A URL without a scheme gets https. The Splunk web UI port 8000
// is rewritten to the management REST port 8089, so pointing the bot at
// the browser URL still works.
func NormalizeSplunkBaseURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", fmt.Errorf("splunk base URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return "", fmt.Errorf("invalid splunk base URL: %q", raw)
	}
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	port := parsed.Port()
	if port == "8000" {
		port = "8089"
		scheme = "https"
	}
	if port != "" {
		return fmt.Sprintf("%s://%s:%s", scheme, parsed.Hostname(), port), nil
	}
	return fmt.Sprintf("%s://%s", scheme, parsed.Hostname()), nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}

func readJSONObject(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return obj
}

// readSubscribers accepts a JSON array of numeric IDs or digit strings,
// matching the subscribers.json the original deployment shipped.
func readSubscribers(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	subscribers := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			subscribers = append(subscribers, strconv.FormatInt(int64(v), 10))
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed != "" {
				subscribers = append(subscribers, trimmed)
			}
		}
	}
	return subscribers
}

func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := data[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func toBool(value any, fallback bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return fallback
}
