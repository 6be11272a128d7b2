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
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"flagcli/internal/config"
	"flagcli/internal/infrastructure"
	customMiddleware "flagcli/internal/middleware"
	"flagcli/internal/pipeline"
	handlers "flagcli/internal/transport/http"
	ws "flagcli/internal/websocket"
)

// Application is the flagging web server: the HTTP router, the websocket
// status feed and the pipeline runner behind POST /api/runs.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	WebSocketHub  *ws.Hub
	Runner        *pipeline.Runner
	Metrics       *infrastructure.PipelineMetrics
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	foundation *Foundation
}

// NewApplication bootstraps the configuration at configPath and builds the
// application around it
func NewApplication(configPath string) (*Application, error) {
	f, err := Bootstrap(configPath)
	if err != nil {
		return nil, err
	}
	a, err := New(f)
	if err != nil {
		f.Close(context.Background())
		return nil, err
	}
	return a, nil
}

// New builds the application from an existing foundation
func New(f *Foundation) (*Application, error) {
	hub := ws.NewHub(f.Logger, f.OTelProviders.Meter)

	runner, metrics, err := NewRunner(f, hub)
	if err != nil {
		return nil, err
	}

	a := &Application{
		Config:        f.Config,
		WebSocketHub:  hub,
		Runner:        runner,
		Metrics:       metrics,
		Logger:        f.Logger.With(slog.String("component", "app")),
		OTelProviders: f.OTelProviders,
		foundation:    f,
	}
	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// The websocket route only gets middleware that leaves the writer alone
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.HandleFunc("/ws", ws.Handler(a.WebSocketHub, a.Config.WebSocket))

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	runs := handlers.NewRunsHandler(a.Runner, a.Config.Paths.SettingsFile, a.Config.Server.RunTimeout, a.Logger)
	health := handlers.NewHealthHandler(a.WebSocketHub, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", health.HealthCheck)
		r.Mount("/runs", runs.Routes())
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

// Run listens on the configured port and serves until ctx is cancelled or
// the process receives SIGINT or SIGTERM
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.WebSocketHub.Start()

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("version", config.AppVersion),
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(ctx, "Shutting down application")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		return a.Stop(shutdownCtx)
	})
	return g.Wait()
}

// Stop shuts the server down, disconnects websocket clients and flushes
// telemetry
func (a *Application) Stop(ctx context.Context) error {
	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	a.WebSocketHub.Stop()

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return a.foundation.Close(ctx)
}
