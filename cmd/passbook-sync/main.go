package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"passbook/internal/backend"
	"passbook/internal/cache"
	"passbook/internal/cli"
	"passbook/internal/log"
	"passbook/internal/metrics"
	"passbook/internal/middleware/trace"
	"passbook/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info").Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel)
	logger.Info("Starting passbook-sync")

	m := metrics.New()
	b, err := backend.Open(context.Background(), cfg, logger.Logger, backend.Options{AMQP: true, Metrics: m})
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err, "db_path", cfg.DBPath)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger.With(log.FieldComponent, log.ComponentCache).Slog())
	if c := b.API.CacheCleaner(); c != nil {
		cacheManager.Register(c)
		cacheManager.StartCleanup(time.Minute)
	}

	syncWorker := worker.NewSyncWorker(b.Repo, b.API, m, logger.Logger, worker.Config{
		BatchSize:  cfg.SyncBatchSize,
		MaxRetries: cfg.SyncMaxRetries,
		Interval:   cfg.SyncInterval,
	})

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           trace.NewMiddleware(logger.Logger, "/metrics", "/healthz").Middleware(newMux(b, m)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := syncWorker.Stop(ctx); err != nil {
			logger.Error("Failed to stop sync worker", log.FieldError, err)
		}
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Metrics server shutdown failed", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := b.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	})

	if !b.API.HasSession() {
		logger.Warn("No PIN session stored; operations stay pending until `passbook login` runs")
	}

	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", log.FieldError, err)
		os.Exit(1)
	}

	if b.AMQP != nil {
		go func() {
			if err := b.AMQP.ConsumeOperations(ctx, syncWorker.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on periodic sweep", "interval", cfg.SyncInterval)
	}

	go func() {
		logger.Info("Metrics server listening", "addr", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

type healthResponse struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
	AMQP    bool   `json:"amqp"`
	Session bool   `json:"session"`
	Error   string `json:"error,omitempty"`
}

func newMux(b *backend.Backend, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", AMQP: b.AMQP != nil, Session: b.API.HasSession()}
		status := http.StatusOK

		pending, err := b.Repo.CountPending(r.Context())
		if err == nil {
			err = b.Repo.Ping(r.Context())
		}
		if err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
		resp.Pending = pending

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}
