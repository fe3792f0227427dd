package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nsecli/internal/config"
	"nsecli/internal/drive"
	apierrors "nsecli/internal/errors"
	"nsecli/internal/exporter"
	"nsecli/internal/infrastructure"
	customMiddleware "nsecli/internal/middleware"
	"nsecli/internal/nse"
	"nsecli/internal/pipeline"
	"nsecli/internal/store"
	handlers "nsecli/internal/transport/http"
	ws "nsecli/internal/websocket"
	"nsecli/pkg/contracts/domain"
)

// Version is overridable at build time with -ldflags.
var Version = "dev"

// Application wires the configuration, services, and HTTP server together.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Router *chi.Mux
	Server *http.Server
	Hub    *ws.Hub

	acquirer     *pipeline.Acquirer
	sessions     *pipeline.SessionManager
	consolidator *pipeline.Consolidator
	dashboard    *pipeline.DashboardBuilder
	orchestrator *pipeline.Orchestrator
	artifacts    *exporter.Artifacts
}

// New builds a fully wired application from configuration.
func New(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	app := &Application{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) initializeServices() error {
	cfg := a.Config
	holidays := cfg.HolidaySet()

	a.Hub = ws.NewHub(a.Logger)

	cache := store.New(cfg.Paths, a.Logger)
	provider := nse.NewClient(cfg.Provider, a.Logger)

	builder := exporter.NewBuilder()
	a.artifacts = exporter.NewArtifacts(cfg.Paths.ArtifactsDir)

	var uploader pipeline.Uploader
	if cfg.Drive.Enabled {
		up, err := drive.NewUploader(context.Background(), cfg.Drive, a.Logger)
		if err != nil {
			return fmt.Errorf("initialize drive uploader: %w", err)
		}
		uploader = up
	}

	gate := pipeline.NewGate(provider, cache, a.Logger)
	a.acquirer = pipeline.NewAcquirer(gate, holidays, a.Logger)
	a.acquirer.OnDay(func(entry domain.DayEntry) {
		a.Hub.Broadcast(ws.TypeDayEntry, entry)
	})
	a.consolidator = pipeline.NewConsolidator(cache, builder, a.artifacts, uploader, holidays, a.Logger)
	a.sessions = pipeline.NewSessionManager(gate, a.acquirer, a.consolidator, cfg.Pipeline.PreviewRows, a.Logger)
	a.dashboard = pipeline.NewDashboardBuilder(provider, cache, builder, a.artifacts, a.Logger)
	a.orchestrator = pipeline.NewOrchestrator(a.acquirer, a.consolidator, a.dashboard, a.Logger)
	a.orchestrator.OnStage(func(stage, status string) {
		messageType := ws.TypePipelineStage
		if stage == "pipeline" {
			messageType = ws.TypePipelineComplete
		}
		a.Hub.Broadcast(messageType, map[string]string{
			"stage":  stage,
			"status": status,
		})
	})

	return nil
}

// setupRouter configures the HTTP router. The websocket route stays outside
// the middleware group so response-writer wrappers cannot break the upgrade.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.HandleFunc("/ws", a.handleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Server.AllowedOrigins,
		}))
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Server.RateLimitRPS,
			a.Config.Server.RateLimitBurst,
			a.Logger,
		).Handler)
		r.Use(customMiddleware.Compress(5))

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := apierrors.NewErrorHandler(a.Logger)

	healthHandler := handlers.NewHealthHandler(a.Logger, Version)
	r.Mount("/healthz", healthHandler.Routes())

	r.Route("/api", func(r chi.Router) {
		acquisitionHandler := handlers.NewAcquisitionHandler(a.acquirer, a.Logger, errorHandler)
		r.Mount("/dates", acquisitionHandler.DateRoutes())
		r.Mount("/downloads", acquisitionHandler.DownloadRoutes())

		sessionHandler := handlers.NewSessionHandler(a.sessions, a.Logger, errorHandler)
		r.Mount("/sessions", sessionHandler.Routes())

		exportHandler := handlers.NewExportHandler(a.consolidator, a.Logger, errorHandler)
		r.Mount("/exports", exportHandler.Routes())

		artifactHandler := handlers.NewArtifactHandler(a.artifacts, a.Logger, errorHandler)
		r.Mount("/artifacts", artifactHandler.Routes())

		dashboardHandler := handlers.NewDashboardHandler(a.dashboard, a.Hub, a.Logger, errorHandler)
		r.Mount("/dashboard", dashboardHandler.Routes())

		pipelineHandler := handlers.NewPipelineHandler(a.orchestrator, a.Hub, a.Logger, errorHandler)
		r.Mount("/pipeline", pipelineHandler.Routes())
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	a.Logger.InfoContext(r.Context(), "websocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
	)
	ws.ServeWS(a.Hub, w, r)
}

// Start begins serving. The returned error channel receives any fatal
// listener error.
func (a *Application) Start(ctx context.Context) <-chan error {
	a.Hub.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.InfoContext(ctx, "server starting",
			slog.String("addr", a.Server.Addr),
			slog.String("version", Version),
		)
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	return errCh
}

// Stop shuts the server and hub down gracefully.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	a.Hub.Stop()
	if err := infrastructure.CloseLogger(); err != nil {
		return fmt.Errorf("close logger: %w", err)
	}
	return nil
}

// Run serves until an interrupt arrives, then shuts down gracefully.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := a.Start(ctx)

	select {
	case sig := <-sigCh:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		a.Logger.ErrorContext(ctx, "server failed", slog.String("error", err.Error()))
		stopErr := a.Stop(ctx)
		if stopErr != nil {
			a.Logger.ErrorContext(ctx, "shutdown after failure", slog.String("error", stopErr.Error()))
		}
		return err
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
