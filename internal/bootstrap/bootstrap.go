// Package bootstrap wires configuration, infrastructure and use cases into
// the two binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/scanreader/internal/config"
	"github.com/kirillkom/scanreader/internal/core/ports"
	"github.com/kirillkom/scanreader/internal/core/usecase"
	"github.com/kirillkom/scanreader/internal/export"
	"github.com/kirillkom/scanreader/internal/infrastructure/ocr/remote"
	"github.com/kirillkom/scanreader/internal/infrastructure/queue/nats"
	"github.com/kirillkom/scanreader/internal/infrastructure/render/pdfrender"
	"github.com/kirillkom/scanreader/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/scanreader/internal/infrastructure/resilience"
	"github.com/kirillkom/scanreader/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/scanreader/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Store    ports.DocumentStore
	Jobs     ports.JobStatusRepository
	Renderer *pdfrender.Renderer
	Sessions *usecase.SessionManager
	Exporter *export.Service

	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pagesRepo := postgres.NewPageTextRepository(db)
	if err := pagesRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure page_texts schema: %w", err)
	}
	jobsRepo := postgres.NewJobStatusRepository(db)
	if err := jobsRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure extraction_jobs schema: %w", err)
	}

	store, err := localfs.New(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("init document storage: %w", err)
	}

	queue, err := nats.Connect(nats.Options{
		URL:        cfg.NATS.URL,
		Resilience: resilience.DefaultConfig(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics()

	renderer := pdfrender.NewRenderer(store, logger)
	engine := workerMetrics.InstrumentOCR(remote.NewClient(remote.Options{
		BaseURL:        cfg.OCR.BaseURL,
		Model:          cfg.OCR.Model,
		Timeout:        cfg.OCR.Timeout,
		RequestsPerSec: cfg.OCR.RequestsPerSec,
		Resilience:     resilience.DefaultConfig(),
	}, logger))

	jobs := workerMetrics.InstrumentJobs(jobsRepo)
	sessions := usecase.NewSessionManager(renderer, engine, pagesRepo, jobs, logger)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Queue:         queue,
		Store:         store,
		Jobs:          jobs,
		Renderer:      renderer,
		Sessions:      sessions,
		Exporter:      export.NewService(logger),
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
