package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/praxislabs/praxis/internal/chat"
	"github.com/praxislabs/praxis/internal/config"
	"github.com/praxislabs/praxis/internal/health"
	"github.com/praxislabs/praxis/internal/observe"
	"github.com/praxislabs/praxis/internal/scope"
	"github.com/praxislabs/praxis/internal/session"
	"github.com/praxislabs/praxis/pkg/provider/calendar"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 15 * time.Second

// ServerConfig holds everything the gateway server needs to run.
type ServerConfig struct {
	// Server is the listener portion of the loaded configuration.
	Server config.ServerConfig

	// LMSKey is the shared secret required on WebSocket start and /api/chat.
	// Empty disables the check.
	LMSKey string

	// HistoryLimit bounds per-session history. Zero uses the default.
	HistoryLimit int

	// Scopes resolves enrollment scope. Required.
	Scopes *scope.Resolver

	// Chat answers turns on every surface. Required.
	Chat *chat.Service

	// Sessions is the live session registry. Required.
	Sessions *session.Registry

	// Prefs persists per-student preferences. Nil disables persistence.
	Prefs session.PrefStore

	// Calendar backs the admin calendar endpoints. Nil disables them.
	Calendar calendar.Client

	// Slack handles POST /slack/events. Nil disables the mount.
	Slack http.Handler

	// Health serves /healthz and /readyz. Nil mounts a checker-less handler.
	Health *health.Handler

	// Metrics instruments HTTP and session activity. Nil uses the default.
	Metrics *observe.Metrics
}

// Server is the Praxis gateway: one chi router serving the WebSocket session
// endpoint, the one-shot chat endpoint, the calendar admin endpoints, the
// Slack events surface, and the operational endpoints.
type Server struct {
	cfg     ServerConfig
	metrics *observe.Metrics
	router  chi.Router
	httpSrv *http.Server
}

// NewServer assembles the router and the underlying http.Server.
func NewServer(cfg ServerConfig) *Server {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	s := &Server{cfg: cfg, metrics: m}
	s.router = s.buildRouter()
	s.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the assembled router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	ws := NewWSHandler(WSConfig{
		Scopes:       s.cfg.Scopes,
		Chat:         s.cfg.Chat,
		Sessions:     s.cfg.Sessions,
		Prefs:        s.cfg.Prefs,
		LMSKey:       s.cfg.LMSKey,
		HistoryLimit: s.cfg.HistoryLimit,
		Metrics:      s.metrics,
	})
	r.Method(http.MethodGet, "/ws", ws)

	r.Post("/api/chat", s.handleChat)

	if s.cfg.Calendar != nil {
		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)
			r.Get("/calendar-events", s.handleListEvents)
			r.Post("/add-students-to-event", s.handleAddStudents)
			r.Delete("/remove-event", s.handleRemoveEvent)
		})
	}

	if s.cfg.Slack != nil {
		r.Method(http.MethodPost, "/slack/events", s.cfg.Slack)
	}

	hh := s.cfg.Health
	if hh == nil {
		hh = health.New()
	}
	hh.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Run serves until ctx is cancelled, then drains gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("gateway listening", "addr", s.httpSrv.Addr, "tls", s.cfg.Server.TLS != nil)
		var err error
		if tls := s.cfg.Server.TLS; tls != nil {
			err = s.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpSrv.Shutdown(drainCtx)
	})

	return g.Wait()
}

// requireAPIKey guards the calendar admin endpoints with the static admin
// key from configuration.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.AdminAPIKey == "" || r.Header.Get("X-API-Key") != s.cfg.Server.AdminAPIKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
