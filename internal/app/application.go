package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"lingorelay/internal/api"
	"lingorelay/internal/config"
	"lingorelay/internal/database"
	"lingorelay/internal/hub"
	"lingorelay/internal/router"
	"lingorelay/internal/session"
	"lingorelay/internal/translation"
	"lingorelay/internal/websocket"
	pkgdatabase "lingorelay/pkg/database"
	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/protocol"
	"lingorelay/pkg/types"
)

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config     *config.Config
	dbManager  *database.Manager // nil when transcripts are disabled
	recorder   *session.Recorder
	gateway    *translation.Gateway
	registry   *websocket.Registry
	router     *router.Router
	messageHub *hub.Hub
	apiServer  *api.Server
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Database → Recorder → Translation → Registry → Router → Hub → API → HTTP
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Transcript store, migrated, validated and emptied
	var (
		dbManager *database.Manager
		store     interfaces.TranscriptStore
	)
	if cfg.Database.Enabled {
		dbConfig := pkgdatabase.DefaultConfig()
		dbConfig.DatabasePath = cfg.Database.Path
		dbConfig.MaxConnections = cfg.Database.MaxConnections

		var err error
		dbManager, err = database.NewManager(dbConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database manager: %w", err)
		}
		if err := pkgdatabase.NewSchemaValidator(dbManager.DB()).Validate(); err != nil {
			_ = dbManager.Close()
			return nil, fmt.Errorf("database schema is invalid: %w", err)
		}
		store = dbManager
		logger.Info("Transcript store ready", "path", cfg.Database.Path)
	}

	// STEP 2: Recorder, transcripts never survive a restart
	recorder := session.NewRecorder(store, cfg.Database.Timeout, logger)
	resetCtx, cancel := context.WithTimeout(context.Background(), cfg.Database.Timeout)
	defer cancel()
	if err := recorder.Reset(resetCtx); err != nil {
		closeQuietly(dbManager)
		return nil, err
	}

	// STEP 3: Language catalog and translation capability
	catalog, err := translation.NewCatalog(
		types.LanguageCode(cfg.Translation.ReferenceLanguage),
		cfg.Translation.TravelerLanguages(),
		cfg.Translation.ModelTemplate,
		cfg.Translation.Models,
	)
	if err != nil {
		closeQuietly(dbManager)
		return nil, fmt.Errorf("failed to build model catalog: %w", err)
	}

	translator, err := translation.NewTranslator(cfg.Translation.Backend, cfg.Translation.Endpoint, cfg.Translation.RequestTimeout)
	if err != nil {
		closeQuietly(dbManager)
		return nil, fmt.Errorf("failed to initialize translator: %w", err)
	}

	gateway := translation.NewGateway(catalog, translator, translation.GatewayConfig{
		Timeout:       cfg.Translation.Timeout,
		MaxConcurrent: int64(cfg.Translation.MaxConcurrent),
		DetectSource:  cfg.Translation.DetectSource,
	}, logger)

	// STEP 4: Registry, a drained session loses its transcript
	registry := websocket.NewRegistry(logger)
	registry.OnSessionDrained(recorder.SessionDrained)
	recorder.WatchSessions(registry)

	// STEP 5: Router and hub
	messageRouter := router.NewRouter(registry, gateway, recorder, router.Config{
		DefaultTravelerLanguage: types.LanguageCode(cfg.Translation.DefaultTravelerLanguage),
		MessagesPerMinute:       cfg.RateLimit.MessagesPerMinute,
	}, logger)
	messageHub := hub.NewHub(messageRouter, cfg.WebSocket.InboxSize, logger)

	// STEP 6: API server and WebSocket handler
	apiServer := api.NewServer(registry, recorder, gateway, messageHub, logger)

	wsHandler := websocket.NewHandler(registry, messageHub, protocol.NewDecoder(catalog.Supported()), websocket.HandlerConfig{
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.ReadTimeout,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		BufferSize:     cfg.WebSocket.BufferSize,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, logger, messageRouter.Forget)

	// STEP 7: Setup HTTP server with both API and WebSocket endpoints
	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		recorder:   recorder,
		gateway:    gateway,
		registry:   registry,
		router:     messageRouter,
		messageHub: messageHub,
		apiServer:  apiServer,
		httpServer: httpServer,
		logger:     logger,
	}, nil
}

// Start begins application execution
// Hub starts first to handle messages, then HTTP server accepts connections
func (app *Application) Start(ctx context.Context) error {
	// STEP 1: Start message hub (background message processing)
	if err := app.messageHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message hub: %w", err)
	}

	// STEP 2: Bind before returning so the address is known and port conflicts surface here
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = app.messageHub.Stop()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener

	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server error", "err", err)
		}
	}()

	app.logger.Info("lingorelay started",
		"addr", listener.Addr().String(),
		"backend", app.config.Translation.Backend,
		"languages", app.config.Translation.Languages,
		"transcripts", app.recorder.Enabled(),
	)
	return nil
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → Hub → Database
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("Shutting down lingorelay")

	var errs []error

	// STEP 1: Stop accepting new connections
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}

	// STEP 2: Stop message processing
	if err := app.messageHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		errs = append(errs, fmt.Errorf("message hub shutdown: %w", err))
	}

	// STEP 3: Close database connections
	if app.dbManager != nil {
		if err := app.dbManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		app.logger.Error("Shutdown finished with errors", "err", err)
		return err
	}
	app.logger.Info("lingorelay shutdown complete")
	return nil
}

// GetAddr returns the bound address once started, the configured one before.
func (app *Application) GetAddr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Catalog exposes the model table, used by the -models listing.
func (app *Application) Catalog() *translation.Catalog {
	return app.gateway.Catalog()
}

// ShutdownTimeout bounds Stop.
func (app *Application) ShutdownTimeout() time.Duration {
	return app.config.HTTP.ShutdownTimeout
}

func closeQuietly(m *database.Manager) {
	if m != nil {
		_ = m.Close()
	}
}
