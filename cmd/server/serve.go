package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/flight-logger/backend/internal/api"
	"github.com/flight-logger/backend/internal/calendar"
	"github.com/flight-logger/backend/internal/logger"
	"github.com/flight-logger/backend/internal/review"
	"github.com/flight-logger/backend/internal/websocket"
)

const lockFile = "flight-logger.lock"

func runServer(ctx context.Context, opts *options) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	// Allow overriding version via environment (e.g., injected by container build/runtime)
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}
	logger.Info("starting flight logger", "version", version, "data_dir", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %q: %w", cfg.DataDir, err)
	}

	// One server per data directory.
	lock := flock.New(filepath.Join(cfg.DataDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another server is already using %s", cfg.DataDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release instance lock", "error", err)
		}
	}()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	logger.Info("database ready", "path", a.db.Path())

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub()
	go hub.Run(hubCtx)
	broadcaster := websocket.NewEventBroadcaster(hub)

	syncService := a.syncService(calendar.WithNotifier(broadcaster))
	scheduler := calendar.NewScheduler(syncService, a.sources, cfg.Sync.DefaultIntervalMin)
	if err := scheduler.Start(ctx); err != nil {
		logger.Warn("failed to start calendar scheduler", "error", err)
	}

	reviewService := review.NewService(a.pending, a.sources, a.flights, a.builder,
		review.WithReconciler(a.reconciler),
		review.WithNotifier(broadcaster),
	)

	router := api.NewRouter(api.Services{
		DB:                 a.db,
		Sources:            a.sources,
		Pending:            a.pending,
		Flights:            a.flights,
		References:         a.refs,
		Sync:               syncService,
		Scheduler:          scheduler,
		Review:             reviewService,
		Builder:            a.builder,
		Reconciler:         a.reconciler,
		Hub:                hub,
		Broadcaster:        broadcaster,
		StaticDir:          cfg.StaticDir,
		DefaultIntervalMin: cfg.Sync.DefaultIntervalMin,
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			scheduler.Stop()
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	scheduler.Stop()

	logger.Info("server stopped")
	return nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(ctx context.Context, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost"+addr+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}
