package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tabstat/internal/config"
	"tabstat/internal/engine"
	apperrors "tabstat/internal/errors"
	"tabstat/internal/infrastructure"
	customMiddleware "tabstat/internal/middleware"
	"tabstat/internal/table"
	handlers "tabstat/internal/transport/http"
	"tabstat/pkg/contracts"
)

// Application represents the daemon: configuration, the statistics engine and
// the HTTP server in front of it.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Engine        *engine.Engine
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	ErrorHandler  *apperrors.ErrorHandler

	startTime time.Time

	mu       sync.Mutex
	listener net.Listener
	serveErr chan error
}

// NewApplication loads configuration from configFile (empty means the default
// lookup), initializes the global logger and builds the application.
func NewApplication(configFile string) (*Application, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigError("configuration is required", nil)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(
		infrastructure.OTelConfigFrom(cfg.Telemetry, contracts.Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apperrors.NewErrorHandler(logger, cfg.Logging.Development),
		startTime:     time.Now(),
	}

	if err := infrastructure.RegisterRuntimeMetrics(otelProviders.Meter, app.startTime); err != nil {
		return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
	}

	if err := app.initializeEngine(); err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) tableOptions() (table.Options, error) {
	delim, err := table.ParseDelimiter(a.Config.Engine.Delimiter)
	if err != nil {
		return table.Options{}, err
	}
	return table.Options{Delimiter: delim, TrimSpace: a.Config.Engine.TrimSpace}, nil
}

func (a *Application) initializeEngine() error {
	opts, err := a.tableOptions()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(a.Config.Server.DataDir, 0o755); err != nil {
		a.Logger.Warn("Data directory unavailable",
			slog.String("data_dir", a.Config.Server.DataDir),
			slog.String("error", err.Error()))
	}

	a.Engine = engine.New(engine.Options{
		Logger:     a.Logger,
		Tracer:     a.OTelProviders.Tracer,
		Metrics:    a.Metrics,
		Table:      opts,
		MaxThreads: a.Config.Engine.MaxThreads,
	})
	return nil
}

// setupRouter configures middleware and routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that leaves the ResponseWriter alone runs ahead of the
	// websocket route; the upgrade needs to hijack the connection.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	tableOpts, _ := a.tableOptions()
	requestOpts := handlers.RequestOptions{
		DataDir:        a.Config.Server.DataDir,
		DefaultThreads: a.Config.Engine.DefaultThreads,
		Table:          tableOpts,
	}
	validator := customMiddleware.NewValidator(a.Logger, a.Config.Server.MaxBodyBytes)

	streamHandler := handlers.NewStreamHandler(a.Engine, validator, requestOpts,
		a.Config.Server.RequestTimeout, a.Config.Security.AllowedOrigins, a.Logger)
	r.Get("/ws/stats", streamHandler.Stream)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			Logger:         a.Logger,
		}))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r, validator, requestOpts)
	})

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, validator *customMiddleware.Validator, opts handlers.RequestOptions) {
	healthHandler := handlers.NewHealthHandler(a.startTime, a.Logger)
	statsHandler := handlers.NewStatsHandler(a.Engine, validator, a.ErrorHandler, opts,
		a.Config.Server.RequestTimeout, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)

		r.Route("/v1", func(r chi.Router) {
			r.With(customMiddleware.ContentTypeValidator("application/json")).
				Post("/stats", statsHandler.Compute)
		})
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start binds the listener and serves in the background. Serve errors other
// than a clean close cancel ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	a.mu.Lock()
	a.listener = ln
	a.serveErr = make(chan error, 1)
	a.mu.Unlock()

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("address", ln.Addr().String()),
		slog.String("data_dir", a.Config.Server.DataDir),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		err := a.Server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			a.serveErr <- err
			cancel()
			return
		}
		a.serveErr <- nil
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start
func (a *Application) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.mu.Lock()
	serveErr := a.serveErr
	a.mu.Unlock()
	if serveErr != nil {
		if err := <-serveErr; err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run serves until ctx is done or SIGINT/SIGTERM arrives, then shuts down
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(runCtx, cancel); err != nil {
		return err
	}

	<-runCtx.Done()
	a.Logger.InfoContext(context.Background(), "Received shutdown signal")

	return a.Stop(context.Background())
}
