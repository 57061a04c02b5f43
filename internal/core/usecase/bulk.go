package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/scanreader/internal/core/cache"
	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/ports"
)

// checkpointEvery is the page interval between persisted progress snapshots.
const checkpointEvery = 5

// BulkExtractUseCase drives the orchestrator across a whole document,
// strictly sequentially and in ascending page order. The run is resumable:
// pages already cached with text are counted as succeeded without touching
// the recognition service.
type BulkExtractUseCase struct {
	documentID string
	totalPages int
	extractor  *ExtractPageUseCase
	cache      *cache.PageTextCache
	jobs       ports.JobStatusRepository
	gate       *SingleFlightGate
	logger     *slog.Logger
	onProgress func(domain.BulkJobState)

	mu        sync.Mutex
	running   bool
	cancelled bool
	state     domain.BulkJobState
}

func NewBulkExtractUseCase(
	documentID string,
	totalPages int,
	extractor *ExtractPageUseCase,
	pageCache *cache.PageTextCache,
	jobs ports.JobStatusRepository,
	gate *SingleFlightGate,
	logger *slog.Logger,
) *BulkExtractUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkExtractUseCase{
		documentID: documentID,
		totalPages: totalPages,
		extractor:  extractor,
		cache:      pageCache,
		jobs:       jobs,
		gate:       gate,
		logger:     logger,
		state: domain.BulkJobState{
			DocumentID: documentID,
			TotalPages: totalPages,
			Status:     domain.JobIdle,
		},
	}
}

// SetProgressFunc installs an optional push-based progress callback. The
// pull-based State accessor works regardless.
func (uc *BulkExtractUseCase) SetProgressFunc(fn func(domain.BulkJobState)) {
	uc.mu.Lock()
	uc.onProgress = fn
	uc.mu.Unlock()
}

// State returns a snapshot of the current run.
func (uc *BulkExtractUseCase) State() domain.BulkJobState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.state
}

// Cancel requests a stop. It takes effect between pages; an in-flight
// recognition call is never interrupted, and extracted pages stay cached.
func (uc *BulkExtractUseCase) Cancel() {
	uc.mu.Lock()
	uc.cancelled = true
	uc.mu.Unlock()
}

// RunAll processes every page of the document. A call while a run is active
// is a no-op returning the in-progress state.
func (uc *BulkExtractUseCase) RunAll(ctx context.Context) (domain.BulkJobState, error) {
	uc.mu.Lock()
	if uc.running {
		st := uc.state
		uc.mu.Unlock()
		return st, nil
	}
	uc.running = true
	uc.cancelled = false
	uc.state = domain.BulkJobState{
		DocumentID: uc.documentID,
		TotalPages: uc.totalPages,
		Status:     domain.JobProcessing,
	}
	uc.mu.Unlock()

	defer func() {
		uc.mu.Lock()
		uc.running = false
		uc.mu.Unlock()
	}()

	if err := uc.gate.Acquire("bulk extraction"); err != nil {
		uc.setStatus(domain.JobIdle)
		return uc.State(), err
	}
	defer uc.gate.Release()

	for page := 1; page <= uc.totalPages; page++ {
		if uc.stopRequested(ctx) {
			return uc.finish(ctx, domain.JobCancelled)
		}

		if rec, ok := uc.cache.Get(page); ok && rec.HasText() {
			uc.advance(true)
		} else {
			rec, err := uc.extractor.extractHoldingGate(ctx, page)
			if err != nil {
				// A failed page advances the job; it stays retry-eligible.
				uc.logger.Warn("bulk page extraction failed",
					"document_id", uc.documentID,
					"page", page,
					"error", err,
				)
			}
			uc.advance(err == nil && rec != nil)
		}

		if page%checkpointEvery == 0 && page != uc.totalPages {
			if err := uc.checkpoint(ctx, domain.JobProcessing); err != nil {
				// Silent progress loss would corrupt resumability; the run
				// stops instead of continuing unrecorded.
				st, _ := uc.finish(ctx, domain.JobFailed)
				return st, fmt.Errorf("job checkpoint: %w", err)
			}
		}
	}

	return uc.finish(ctx, domain.JobCompleted)
}

func (uc *BulkExtractUseCase) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.cancelled
}

func (uc *BulkExtractUseCase) advance(succeeded bool) {
	uc.mu.Lock()
	uc.state.ProcessedCount++
	if succeeded {
		uc.state.SucceededCount++
	}
	snapshot := uc.state
	fn := uc.onProgress
	uc.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

func (uc *BulkExtractUseCase) setStatus(status domain.JobStatus) {
	uc.mu.Lock()
	uc.state.Status = status
	uc.mu.Unlock()
}

func (uc *BulkExtractUseCase) checkpoint(ctx context.Context, status domain.JobStatus) error {
	uc.mu.Lock()
	snapshot := uc.state
	uc.mu.Unlock()
	snapshot.Status = status
	return uc.jobs.UpdateJobProgress(ctx, snapshot)
}

func (uc *BulkExtractUseCase) finish(ctx context.Context, status domain.JobStatus) (domain.BulkJobState, error) {
	uc.setStatus(status)
	if err := uc.checkpoint(ctx, status); err != nil {
		uc.logger.Error("write terminal job status failed",
			"document_id", uc.documentID,
			"status", status,
			"error", err,
		)
	}
	return uc.State(), nil
}
