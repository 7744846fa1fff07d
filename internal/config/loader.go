package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq"},
	"tts": {"google", "openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. ${VAR} references in the file are expanded from the environment
// before decoding, so secrets can stay out of the file itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg, err := LoadFromReader(bytes.NewReader([]byte(os.ExpandEnv(string(raw)))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}
	if cfg.Server.LMSKey == "" {
		slog.Warn("server.lms_key is empty; session starts will not be authenticated")
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.FallbackLLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required; the assistant cannot answer without a completion provider"))
	}

	// Enrollment is the identity source; the server refuses handshakes
	// without it.
	if cfg.Enrollment.BaseURL == "" {
		errs = append(errs, errors.New("enrollment.base_url is required"))
	}
	if cfg.Enrollment.APIKey == "" {
		errs = append(errs, errors.New("enrollment.api_key is required"))
	}

	// Calendar
	if cfg.Calendar.BaseURL != "" && cfg.Calendar.Token == "" {
		errs = append(errs, errors.New("calendar.token is required when calendar.base_url is set"))
	}
	if cfg.Calendar.BaseURL != "" && cfg.Server.AdminAPIKey == "" {
		slog.Warn("calendar.base_url is set but server.admin_api_key is empty; calendar administration endpoints will be disabled")
	}

	// Slack
	if cfg.Slack.SigningSecret != "" && cfg.Slack.BotToken == "" {
		errs = append(errs, errors.New("slack.bot_token is required when slack.signing_secret is set"))
	}
	if cfg.Slack.DedupTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("slack.dedup_ttl_seconds %d must not be negative", cfg.Slack.DedupTTLSeconds))
	}
	if cfg.Slack.SigningSecret != "" && cfg.Store.Redis.Addr == "" {
		slog.Warn("slack is configured without store.redis.addr; event deduplication will be per-process only")
	}

	// Store
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; student preferences will not survive a restart")
	}

	// Scope
	if cfg.Scope.FuzzyThreshold < 0 || cfg.Scope.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("scope.fuzzy_threshold %.2f is out of range [0, 1]", cfg.Scope.FuzzyThreshold))
	}
	if cfg.Scope.StrongKeywordBonus < 0 {
		errs = append(errs, fmt.Errorf("scope.strong_keyword_bonus %.2f must not be negative", cfg.Scope.StrongKeywordBonus))
	}

	// Session
	if cfg.Session.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("session.history_limit %d must not be negative", cfg.Session.HistoryLimit))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
