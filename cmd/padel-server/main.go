package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/padel-scoreboard/internal/config"
	"github.com/park285/padel-scoreboard/internal/httpapi"
	"github.com/park285/padel-scoreboard/internal/livefeed"
	"github.com/park285/padel-scoreboard/internal/obslog"
	"github.com/park285/padel-scoreboard/internal/padelbuilder"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := padelbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init_error", zap.Error(err))
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("deps_close_failed", zap.Error(err))
		}
	}()

	api := httpapi.New(deps.Service, deps.Messages, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	})

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreBackend))
		errCh <- api.App().Listen(cfg.HTTPAddr)
	}()

	// Live feed runs on its own listener; nhooyr needs a net/http handler.
	var live *http.Server
	if cfg.LiveAddr != "" {
		mux := http.NewServeMux()
		mux.Handle(livefeed.PathPrefix, deps.Feed)
		live = &http.Server{Addr: cfg.LiveAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("live_listen", zap.String("addr", cfg.LiveAddr))
			if err := live.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	if iv := cfg.ExportRetryInterval(); iv > 0 {
		sched, err := deps.Service.StartExportRetry(iv)
		if err != nil {
			logger.Fatal("export_retry_init_failed", zap.Error(err))
		}
		defer func() { _ = sched.Shutdown() }()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-errCh:
		logger.Error("listener_failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if live != nil {
		_ = live.Shutdown(shutdownCtx)
	}
	if err := api.App().ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	if ids, err := deps.Service.PendingExports(shutdownCtx); err == nil && len(ids) > 0 {
		// the store keeps them; the next start retries
		logger.Warn("exports_pending_at_shutdown", zap.Int("count", len(ids)))
	}
}
