package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/scanreader/internal/adapters/http"
	"github.com/kirillkom/scanreader/internal/bootstrap"
	"github.com/kirillkom/scanreader/internal/config"
	"github.com/kirillkom/scanreader/internal/observability/logging"
	"github.com/kirillkom/scanreader/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.Service.Name+"-api", cfg.Service.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPMetrics()
	router := httpadapter.NewRouter(
		app.Sessions,
		app.Queue,
		app.Jobs,
		app.Store,
		app.Exporter,
		httpMetrics,
		httpadapter.Options{
			RateLimitRPS:   cfg.HTTP.RatePerSecond,
			RateLimitBurst: cfg.HTTP.RateBurst,
			MaxConcurrent:  cfg.HTTP.MaxConcurrent,
			OnClose:        app.Renderer.Forget,
		},
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:    cfg.HTTP.MetricsAddr,
		Handler: httpMetrics.Handler(),
	}

	go func() {
		logger.Info("metrics listening", "addr", cfg.HTTP.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		logger.Info("api listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown error", "error", err)
	}
}
