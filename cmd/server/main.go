package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/itp-portal/internal/apiclient"
	"github.com/JonMunkholm/itp-portal/internal/config"
	"github.com/JonMunkholm/itp-portal/internal/geo"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/metrics"
	"github.com/JonMunkholm/itp-portal/internal/session"
	"github.com/JonMunkholm/itp-portal/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend", cfg.API.BaseURL(),
		"session_store", cfg.Session.Store,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"geocoding", cfg.Maps.GeocoderURL != "",
	)
	slog.Debug("effective configuration", "config", cfg.String())

	m := metrics.New(prometheus.DefaultRegisterer)

	// Open the session store
	ctx := context.Background()
	store, err := session.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open session store", "store", cfg.Session.Store, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	api := apiclient.New(cfg.API, apiclient.WithMetrics(m))
	geocoder := geo.NewGeocoder(cfg.Maps.GeocoderURL, cfg.Maps.APIKey, cfg.Maps.Timeout)

	server := web.NewServer(web.Deps{
		Config:   cfg,
		API:      api,
		Sessions: session.NewManager(store, cfg.Session),
		Geocoder: geocoder,
		Metrics:  m,
	})

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	janitor := &session.Janitor{
		Store:    store,
		MaxAge:   cfg.Session.MaxAge,
		Interval: cfg.Session.JanitorInterval,
		Metrics:  m,
	}
	go janitor.Run(jobCtx)
	server.Run(jobCtx)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
