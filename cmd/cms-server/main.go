// Command cms-server serves the content engine over HTTP.
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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	demomw "github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-cms/pkg/simplecms/api"
	"github.com/tendant/simple-cms/pkg/simplecms/config"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	helpEnv := flag.Bool("help-env", false, "print supported environment variables and exit")
	flag.Parse()

	if *helpEnv {
		help, err := config.EnvHelp()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(help)
		return
	}

	cfg, err := config.Load(config.WithDotEnv(), config.WithEnv())
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx := context.Background()
	if *migrateOnly {
		if err := cfg.Migrate(ctx); err != nil {
			logger.Error("Migration failed", "err", err)
			os.Exit(1)
		}
		logger.Info("Migrations applied", "database", cfg.DatabaseType)
		return
	}

	comps, err := cfg.Build(ctx)
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer comps.Close()

	handler, err := routes(cfg, comps)
	if err != nil {
		logger.Error("Failed to set up routes", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Content server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"database", cfg.DatabaseType,
			"media", cfg.MediaBackend,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
	logger.Info("Server exiting")
}

func routes(cfg *config.ServerConfig, comps *config.Components) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.LoggingMiddleware(comps.Logger))
	r.Use(api.RecoveryMiddleware(comps.Logger))
	r.Use(middleware.Timeout(60 * time.Second))
	if comps.Metrics != nil {
		r.Use(comps.Metrics.Middleware)
	}
	if cfg.Environment == "development" {
		r.Use(api.CORSMiddleware(nil, nil, nil))
	}

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	if comps.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	var opts []api.HandlerOption
	opts = append(opts, api.WithHandlerLogger(comps.Logger))
	if cfg.JWTSecret != "" {
		opts = append(opts, api.WithWriteMiddleware(api.RequireJWT(api.NewJWTAuth(cfg.JWTSecret))...))
	}
	content := api.NewContentHandler(comps.Service, opts...)

	var guard []api.Middleware
	if len(cfg.APIKeys) > 0 {
		apiKeyMiddleware, err := demomw.ApiKeyMiddleware(demomw.ApiKeyConfig{APIKeys: cfg.APIKeys})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize API key middleware: %w", err)
		}
		guard = append(guard, apiKeyMiddleware)
	}

	chain := api.NewMiddlewareChain(guard...).
		Then(api.RequestSizeLimitMiddleware(1 << 20)).
		Then(api.CacheMiddleware(cfg.CacheMaxAge))
	r.Mount("/api/content", chain.Wrap(content.Routes()))

	return r, nil
}
