package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/pulse/internal"
	"github.com/DukeRupert/pulse/internal/backend"
	"github.com/DukeRupert/pulse/internal/handler"
	"github.com/DukeRupert/pulse/internal/locale"
	"github.com/DukeRupert/pulse/internal/metrics"
	"github.com/DukeRupert/pulse/internal/middleware"
	"github.com/DukeRupert/pulse/internal/tracing"
	"github.com/DukeRupert/pulse/web"
)

func run() error {
	startedAt := time.Now()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Tracing is optional; spans are no-ops unless enabled.
	if cfg.TracingEnabled {
		tp, err := tracing.Init(ctx, cfg)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			logger.Info("Tracing enabled", "endpoint", cfg.TracingEndpoint, "sample_rate", cfg.TracingSampleRate)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(flushCtx); err != nil {
					logger.Warn("Tracing shutdown error", "error", err)
				}
			}()
		}
	}

	// Backend client
	client, err := backend.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("backend client initialization failed: %w", err)
	}
	logger.Info("Backend configured", "api_url", client.BaseURL())

	languages, err := locale.NewLanguages(cfg.SupportedLanguages)
	if err != nil {
		return fmt.Errorf("language initialization failed: %w", err)
	}

	// Initialize template renderer. Development reads templates from disk
	// and re-parses them on change so edits show up without a rebuild.
	const templateDir = "web/templates"
	watchTemplates := false
	var templates fs.FS = web.Templates()
	if !cfg.IsSecure() {
		if _, err := os.Stat(templateDir); err == nil {
			templates = os.DirFS(templateDir)
			watchTemplates = true
		}
	}
	renderer, err := handler.NewRenderer(handler.RendererConfig{
		FS:     templates,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	if watchTemplates {
		if err := renderer.Watch(ctx, templateDir); err != nil {
			logger.Warn("Template watcher unavailable", "error", err)
		}
	}
	logger.Info("Templates loaded", "count", len(renderer.ListTemplates()))

	// Initialize middleware
	isSecure := cfg.IsSecure()
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	sessionMw := middleware.NewSessionMiddleware(client, logger)
	csrfMw := middleware.NewCSRFMiddleware(isSecure, logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg, logger)
	loginLimiter := middleware.NewLoginRateLimiter(cfg, logger)
	defer loginLimiter.Stop()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(client, renderer, logger, isSecure, cfg.SessionCookieName)
	systemsHandler := handler.NewSystemsHandler(client, renderer, logger, cfg.ListSize)
	apiHandler := handler.NewSystemAPIHandler(client, logger)
	settingsHandler := handler.NewSettingsHandler(client, renderer, languages, logger, isSecure, cfg.SessionCookieName)
	publicHandler := handler.NewPublicHandler(client, renderer, logger, cfg.ListSize)
	opsHandler := handler.NewOpsHandler(startedAt)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// Prometheus metrics
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	authHandler.RegisterRoutes(mux, loginLimiter.Handler)
	systemsHandler.RegisterRoutes(mux)
	apiHandler.RegisterRoutes(mux)
	settingsHandler.RegisterRoutes(mux)
	publicHandler.RegisterRoutes(mux)
	opsHandler.RegisterRoutes(mux)

	// Every request passes the route guard; public paths are let through
	// by RequireSession itself.
	stack := middleware.Stack(
		securityMw.Handler,
		loggingMw.Handler,
		middleware.Tracing,
		metrics.Middleware,
		sessionMw.WithSession,
		sessionMw.RequireSession,
		csrfMw.Handler,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
