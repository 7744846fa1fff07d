// Package config provides the configuration schema, loader, and provider
// registry for the Praxis tutoring server.
package config

// LogLevel controls log verbosity for the Praxis server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Praxis.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Enrollment EnrollmentConfig `yaml:"enrollment"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Slack      SlackConfig      `yaml:"slack"`
	Store      StoreConfig      `yaml:"store"`
	Scope      ScopeConfig      `yaml:"scope"`
	Session    SessionConfig    `yaml:"session"`
}

// ServerConfig holds network and logging settings for the Praxis server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LMSKey is the shared secret students' clients present on session start.
	// Empty disables the check (useful for local development only).
	LMSKey string `yaml:"lms_key"`

	// AdminAPIKey guards the calendar administration endpoints. Requests must
	// present it in the X-API-Key header. Empty disables those endpoints.
	AdminAPIKey string `yaml:"admin_api_key"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// vendor-facing stage. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	// LLM is the primary completion provider.
	LLM ProviderEntry `yaml:"llm"`

	// FallbackLLM, when named, answers while the primary's circuit is open.
	FallbackLLM ProviderEntry `yaml:"fallback_llm"`

	// TTS synthesizes spoken replies. Empty disables speech output.
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini", "google").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gemini-2.0-flash").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// EnrollmentConfig points at the LMS enrollment vendor.
type EnrollmentConfig struct {
	// BaseURL is the vendor API root (e.g., "https://lms.example.com/api").
	BaseURL string `yaml:"base_url"`

	// APIKey is sent in the X-API-Key header on every vendor request.
	APIKey string `yaml:"api_key"`
}

// CalendarConfig points at the calendar vendor used for study-session events.
type CalendarConfig struct {
	// BaseURL is the vendor API root. Empty disables the calendar endpoints.
	BaseURL string `yaml:"base_url"`

	// Token is the Bearer token for the vendor API.
	Token string `yaml:"token"`
}

// SlackConfig holds the Slack integration settings. An empty SigningSecret
// disables the Slack event endpoint.
type SlackConfig struct {
	// SigningSecret verifies the X-Slack-Signature header on incoming events.
	SigningSecret string `yaml:"signing_secret"`

	// BotToken authenticates outgoing Web API calls.
	BotToken string `yaml:"bot_token"`

	// DedupTTLSeconds is how long a processed event ID stays locked against
	// Slack's retry deliveries. Defaults to 600.
	DedupTTLSeconds int `yaml:"dedup_ttl_seconds"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// PostgresDSN is the connection string for the preference store.
	// Empty keeps preferences in process memory.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Redis configures the shared lock store used for Slack event
	// deduplication. An empty Addr keeps locks in process memory.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ScopeConfig tunes the topic matcher.
type ScopeConfig struct {
	// FuzzyThreshold is the minimum acceptance score for a fuzzy topic match,
	// in (0, 1]. Zero keeps the built-in default.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// StrongKeywordBonus is the score bonus per matched domain keyword.
	// Zero keeps the built-in default.
	StrongKeywordBonus float64 `yaml:"strong_keyword_bonus"`
}

// SessionConfig tunes per-connection session behaviour.
type SessionConfig struct {
	// HistoryLimit is the maximum number of turns kept per session.
	// Zero keeps the built-in default.
	HistoryLimit int `yaml:"history_limit"`
}
