package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/scanreader/internal/bootstrap"
	"github.com/kirillkom/scanreader/internal/config"
	"github.com/kirillkom/scanreader/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.Service.Name+"-worker", cfg.Service.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    cfg.Worker.MetricsAddr,
		Handler: app.WorkerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "addr", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("worker subscribed", "nats_url", cfg.NATS.URL)
	err = app.Queue.SubscribeExtractRequested(ctx, func(handlerCtx context.Context, documentID string) error {
		jobCtx, cancel := context.WithTimeout(handlerCtx, cfg.Worker.JobTimeout)
		defer cancel()
		return runBulkJob(jobCtx, app, documentID)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker subscribe error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func runBulkJob(ctx context.Context, app *bootstrap.App, documentID string) error {
	session, err := app.Sessions.Open(ctx, documentID)
	if err != nil {
		return err
	}

	app.WorkerMetrics.JobsInFlight.Inc()
	defer app.WorkerMetrics.JobsInFlight.Dec()

	state, err := session.Bulk.RunAll(ctx)
	app.WorkerMetrics.PagesProcessed.WithLabelValues("succeeded").Add(float64(state.SucceededCount))
	app.WorkerMetrics.PagesProcessed.WithLabelValues("failed").Add(float64(state.ProcessedCount - state.SucceededCount))
	return err
}
