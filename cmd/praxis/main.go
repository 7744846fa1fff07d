// Command praxis is the main entry point for the Praxis tutoring server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/redis/go-redis/v9"

	"github.com/praxislabs/praxis/internal/chat"
	"github.com/praxislabs/praxis/internal/config"
	"github.com/praxislabs/praxis/internal/gateway"
	"github.com/praxislabs/praxis/internal/health"
	"github.com/praxislabs/praxis/internal/observe"
	"github.com/praxislabs/praxis/internal/resilience"
	"github.com/praxislabs/praxis/internal/scope"
	"github.com/praxislabs/praxis/internal/session"
	"github.com/praxislabs/praxis/internal/session/postgres"
	"github.com/praxislabs/praxis/internal/slackbot"
	"github.com/praxislabs/praxis/pkg/provider/calendar"
	"github.com/praxislabs/praxis/pkg/provider/enrollment"
	"github.com/praxislabs/praxis/pkg/provider/llm"
	"github.com/praxislabs/praxis/pkg/provider/llm/anyllm"
	"github.com/praxislabs/praxis/pkg/provider/llm/gemini"
	"github.com/praxislabs/praxis/pkg/provider/tts"
	"github.com/praxislabs/praxis/pkg/provider/tts/googletts"
	"github.com/praxislabs/praxis/pkg/provider/tts/oaitts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Vendor keys usually arrive through the environment; a local .env is a
	// convenience for development.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "praxis: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "praxis: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("praxis starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "praxis",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	llmProvider, ttsProvider, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Enrollment + scope ────────────────────────────────────────────────────
	enrollClient, err := enrollment.NewHTTPClient(cfg.Enrollment.BaseURL, cfg.Enrollment.APIKey)
	if err != nil {
		slog.Error("failed to create enrollment client", "err", err)
		return 1
	}
	scopes := scope.NewResolver(enrollClient)
	topics := scope.NewTopicResolver(scope.TopicConfig{
		FuzzyThreshold:     cfg.Scope.FuzzyThreshold,
		StrongKeywordBonus: cfg.Scope.StrongKeywordBonus,
	}, llmProvider)

	// ── Preference store ──────────────────────────────────────────────────────
	var (
		prefs    session.PrefStore
		checkers []health.Checker
	)
	if cfg.Store.PostgresDSN != "" {
		store, err := postgres.NewPrefStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to preference store", "err", err)
			return 1
		}
		defer store.Close()
		prefs = store
		checkers = append(checkers, health.Checker{Name: "postgres", Check: store.Ping})
		slog.Info("preference store connected")
	} else {
		prefs = session.NewMemoryPrefStore()
		slog.Info("using in-memory preference store")
	}

	// ── Redis (Slack event dedup) ─────────────────────────────────────────────
	var locker slackbot.Locker = slackbot.NewMemoryLocker()
	if addr := cfg.Store.Redis.Addr; addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			slog.Error("failed to connect to redis", "addr", addr, "err", err)
			return 1
		}
		defer rdb.Close()
		locker = slackbot.NewRedisLocker(rdb)
		checkers = append(checkers, health.Checker{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		slog.Info("redis connected", "addr", addr)
	}

	// ── Chat pipeline ─────────────────────────────────────────────────────────
	chatSvc := chat.NewService(chat.Config{
		LLM:     llmProvider,
		TTS:     ttsProvider,
		Voice:   voiceFromConfig(cfg.Providers.TTS),
		Topics:  topics,
		Prefs:   prefs,
		Metrics: metrics,
	})

	// ── Slack surface ─────────────────────────────────────────────────────────
	var slackHandler http.Handler
	if cfg.Slack.SigningSecret != "" && cfg.Slack.BotToken != "" {
		slackHandler = slackbot.NewHandler(slackbot.Config{
			SigningSecret: cfg.Slack.SigningSecret,
			API:           slackbot.NewClient(cfg.Slack.BotToken),
			Scopes:        scopes,
			Chat:          chatSvc,
			Locker:        locker,
			DedupTTL:      time.Duration(cfg.Slack.DedupTTLSeconds) * time.Second,
			HistoryLimit:  cfg.Session.HistoryLimit,
		})
		slog.Info("slack events surface enabled")
	}

	// ── Calendar surface ──────────────────────────────────────────────────────
	var calClient calendar.Client
	if cfg.Calendar.BaseURL != "" && cfg.Server.AdminAPIKey != "" {
		calClient, err = calendar.NewHTTPClient(cfg.Calendar.BaseURL, cfg.Calendar.Token)
		if err != nil {
			slog.Error("failed to create calendar client", "err", err)
			return 1
		}
		slog.Info("calendar endpoints enabled")
	}

	// ── Server ────────────────────────────────────────────────────────────────
	srv := gateway.NewServer(gateway.ServerConfig{
		Server:       cfg.Server,
		LMSKey:       cfg.Server.LMSKey,
		HistoryLimit: cfg.Session.HistoryLimit,
		Scopes:       scopes,
		Chat:         chatSvc,
		Sessions:     session.NewRegistry(),
		Prefs:        prefs,
		Calendar:     calClient,
		Slack:        slackHandler,
		Health:       health.New(checkers...),
		Metrics:      metrics,
	})

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider category names to the implementations that
// ship with Praxis. Used for startup logging.
var builtinProviders = map[string][]string{
	"llm": {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq"},
	"tts": {"google", "openai"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// gemini uses the native SDK; everything else goes through any-llm.
	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []gemini.Option
		if entry.Model != "" {
			opts = append(opts, gemini.WithModel(entry.Model))
		}
		return gemini.New(ctx, entry.APIKey, opts...)
	})

	for _, providerName := range []string{"openai", "anthropic", "deepseek", "mistral", "groq"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("google", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []googletts.Option
		if entry.BaseURL != "" {
			opts = append(opts, googletts.WithBaseURL(entry.BaseURL))
		}
		return googletts.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		return oaitts.New(entry.APIKey, entry.Model, opts...)
	})

	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates the configured LLM (wrapped in a circuit-broken
// fallback group) and the optional TTS provider.
func buildProviders(cfg *config.Config, reg *config.Registry) (llm.Provider, tts.Provider, error) {
	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	group := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	if name := cfg.Providers.FallbackLLM.Name; name != "" {
		fallback, err := reg.CreateLLM(cfg.Providers.FallbackLLM)
		if err != nil {
			return nil, nil, fmt.Errorf("create fallback llm provider %q: %w", name, err)
		}
		group.AddFallback(name, fallback)
		slog.Info("provider created", "kind", "llm_fallback", "name", name)
	}

	var ttsProvider tts.Provider
	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ttsProvider = p
		slog.Info("provider created", "kind", "tts", "name", name)
	}

	return group, ttsProvider, nil
}

// voiceFromConfig extracts the synthesis voice from the TTS provider options.
func voiceFromConfig(entry config.ProviderEntry) tts.Voice {
	return tts.Voice{
		ID:           optString(entry.Options, "voice_id"),
		LanguageCode: optString(entry.Options, "language_code"),
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Praxis — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Fallback LLM", cfg.Providers.FallbackLLM.Name, cfg.Providers.FallbackLLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printFeature("Slack", cfg.Slack.SigningSecret != "" && cfg.Slack.BotToken != "")
	printFeature("Calendar", cfg.Calendar.BaseURL != "" && cfg.Server.AdminAPIKey != "")
	printFeature("Postgres", cfg.Store.PostgresDSN != "")
	printFeature("Redis", cfg.Store.Redis.Addr != "")
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

func printFeature(name string, enabled bool) {
	value := "(disabled)"
	if enabled {
		value = "enabled"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
