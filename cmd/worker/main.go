// Package main is the entrypoint for the job worker process. Any number of
// these can run side by side; they coordinate only through Redis and
// Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khaphanpro-123/voichat1012-sub001/internal/blob"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/config"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/extract"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/queue"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/store"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "worker_count", cfg.Worker.Count)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	redisQueue, err := queue.NewRedisQueue(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis queue: %w", err)
	}
	defer redisQueue.Close()

	if err := redisQueue.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	blobStore, err := blob.NewMinioStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}
	if err := blobStore.Ping(ctx); err != nil {
		return fmt.Errorf("ping blob store: %w", err)
	}
	slog.Info("blob storage connected", "bucket", cfg.Storage.Bucket)

	pgStore := store.NewPostgresStore(pool)
	extractor := extract.NewHTTPClient(cfg.Extractor.BaseURL, cfg.Extractor.Timeout)

	workers := worker.NewPool(cfg.Worker.Count, pgStore, redisQueue, blobStore, extractor, worker.Config{
		MaxRetries:   cfg.Worker.MaxRetries,
		WaitTimeout:  cfg.Worker.WaitTimeout,
		StatusTTL:    cfg.Worker.StatusTTL,
		SignedURLTTL: cfg.Storage.SignedURLTTL,
	})
	workers.Start()
	defer workers.Stop()

	reconciler := worker.NewReconciler(pgStore, redisQueue, cfg.Worker.ReconcileInterval)
	go reconciler.Run(ctx)

	// Metrics and liveness endpoint for this process.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pgStore.Ping(r.Context()); err != nil {
			http.Error(w, "database degraded", http.StatusServiceUnavailable)
			return
		}
		if err := redisQueue.Ping(r.Context()); err != nil {
			http.Error(w, "queue degraded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics endpoint listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping workers...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}

	return nil
}
