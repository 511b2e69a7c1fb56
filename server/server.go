package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/voxform/voxform/ai"
	"github.com/voxform/voxform/api"
	"github.com/voxform/voxform/auth"
	"github.com/voxform/voxform/cleanup"
	"github.com/voxform/voxform/config"
	"github.com/voxform/voxform/db"
	"github.com/voxform/voxform/gateway"
	"github.com/voxform/voxform/log"
	"github.com/voxform/voxform/reconnect"
	"github.com/voxform/voxform/session"
	"github.com/voxform/voxform/storage"
	"github.com/voxform/voxform/telemetry"
	"github.com/voxform/voxform/tools"
)

// Server owns and coordinates all application components
type Server struct {
	cfg *config.Config

	// Components (owned by server)
	sessions *session.Manager
	ledger   *reconnect.Ledger
	tracker  *tools.Tracker
	streams  *ai.StreamRegistry
	cleanup  *cleanup.Orchestrator
	gateway  *gateway.Gateway

	// HTTP
	router *gin.Engine
	http   *http.Server
}

// New creates a server with every component initialized and wired
func New(cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	// 1. Open database (migrations run on first use)
	log.Info().Str("path", cfg.DatabasePath).Msg("initializing database")
	_ = db.GetDB()
	// Entries left behind by a crashed process are unrecoverable
	if n, err := db.DeleteExpiredLiveSessions(); err == nil && n > 0 {
		log.Info().Int64("removed", n).Msg("purged expired live sessions")
	}

	// 2. Session manager over the configured store backend
	emitter := telemetry.NewEmitter()
	var store session.Store
	switch cfg.SessionStore {
	case "sqlite":
		// Live rows carry a TTL comfortably past the stale threshold
		store = session.NewSQLiteStore(2 * cfg.StaleThreshold)
	default:
		store = session.NewMemoryStore()
	}
	s.sessions = session.NewManager(store, session.ManagerConfig{
		InactiveSweepInterval: cfg.InactiveSweepInterval,
		InactiveThreshold:     cfg.InactiveThreshold,
		StaleSweepInterval:    cfg.StaleSweepInterval,
		StaleThreshold:        cfg.StaleThreshold,
		GracefulCloseTimeout:  cfg.CleanupTimeout,
		MaxSessions:           cfg.MaxSessions,
	}, emitter)

	// 3. Reconnection ledger
	s.ledger = reconnect.NewLedger(reconnect.LedgerConfig{
		Window:        cfg.ReconnectWindow,
		SweepInterval: cfg.ReconnectSweepInterval,
	})

	// 4. Tool pipeline: registry, tracker, executor
	s.tracker = tools.NewTracker()
	registry := tools.NewRegistry()
	tools.RegisterSurveyTools(registry, s.sessions)
	executor := tools.NewExecutor(registry, s.tracker, cfg.ToolTimeout)

	// 5. Realtime streams and cleanup orchestrator
	s.streams = ai.NewStreamRegistry()
	s.cleanup = cleanup.NewOrchestrator(s.sessions, s.tracker, s.streams, cfg.CleanupTimeout)

	// Sweeps hand idle sessions to the orchestrator for graceful teardown
	s.sessions.SetGracefulCloser(s.cleanup.CleanupSession)

	// 6. Authentication
	authn, err := auth.New(auth.Config{Mode: cfg.AuthMode, Secret: cfg.AuthSecret})
	if err != nil {
		return nil, fmt.Errorf("failed to configure auth: %w", err)
	}

	// 7. Provider clients. The non-realtime provider is optional; without
	// an API key the TTS and summary paths report unavailable.
	var provider *ai.Provider
	if cfg.OpenAIAPIKey != "" {
		provider = ai.NewProvider(ai.ProviderConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Voice:   cfg.TTSVoice,
		})
	}
	dialer := ai.NewRealtimeDialer(ai.RealtimeConfig{
		URL:    cfg.RealtimeURL,
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
		Voice:  cfg.TTSVoice,
	})

	// 8. Connection gateway
	recorder := storage.NewRecorder()
	var summarizer gateway.Summarizer
	if provider != nil {
		summarizer = provider
	}
	s.gateway = gateway.New(s.sessions, s.ledger, s.tracker, executor, s.streams,
		dialer, authn, recorder, s.cleanup, summarizer,
		gateway.Config{DisconnectDebounce: cfg.DisconnectDebounce})

	// 9. HTTP router and REST surface
	s.setupRouter()
	handlers := api.NewHandlers(s.sessions, s.ledger, s.tracker, s.streams,
		s.cleanup, provider, emitter)
	api.SetupRoutes(s.router, handlers, authn, s.gateway.HandleWS)

	log.Info().Msg("server initialized")
	return s, nil
}

// setupRouter creates and configures the Gin router
func (s *Server) setupRouter() {
	if !s.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(log.GinLogger())

	// Gzip compression (skip the WebSocket endpoint, it hijacks the conn)
	s.router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		"/ws/session",
	})))

	s.router.SetTrustedProxies(nil)
}

// Start begins serving HTTP. It blocks until the listener fails or the
// server is shut down.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.router,
	}

	log.Info().
		Str("addr", s.http.Addr).
		Str("env", s.cfg.Env).
		Msg("server starting")

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains components in reverse
// dependency order: HTTP first, then sweeps and live sessions, then the
// ledger, then the database.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down server")

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("http shutdown error")
		}
	}

	if err := s.sessions.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("session manager shutdown error")
	}
	s.ledger.Shutdown()

	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("database close error")
	}

	log.Info().Msg("server stopped")
	return nil
}
