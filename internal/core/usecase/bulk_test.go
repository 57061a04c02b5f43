package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/scanreader/internal/core/cache"
	"github.com/kirillkom/scanreader/internal/core/domain"
)

func newBulkForTest(totalPages int, engine *engineFake, jobs *jobsRepoFake, preloaded []domain.PageTextRecord) (*BulkExtractUseCase, *cache.PageTextCache, *ExtractPageUseCase) {
	pageCache := cache.New()
	pageCache.LoadAll(preloaded)
	renderer := &rendererFake{pageCount: totalPages}
	pages := &pagesRepoFake{}
	gate := NewSingleFlightGate()
	extractor := NewExtractPageUseCase("doc-1", pageCache, renderer, engine, pages, gate, nil)
	bulk := NewBulkExtractUseCase("doc-1", totalPages, extractor, pageCache, jobs, gate, nil)
	return bulk, pageCache, extractor
}

func preloadedRecords(from, to int) []domain.PageTextRecord {
	var records []domain.PageTextRecord
	for p := from; p <= to; p++ {
		records = append(records, domain.PageTextRecord{
			PageNumber: p,
			RawText:    fmt.Sprintf("stored page %d", p),
		})
	}
	return records
}

func TestRunAllCompletesAndCountsSuccesses(t *testing.T) {
	texts := map[int]string{}
	for p := 1; p <= 10; p++ {
		texts[p] = fmt.Sprintf("page %d", p)
	}
	engine := &engineFake{texts: texts}
	jobs := &jobsRepoFake{}
	bulk, _, _ := newBulkForTest(10, engine, jobs, nil)

	state, err := bulk.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if state.Status != domain.JobCompleted {
		t.Fatalf("status = %q", state.Status)
	}
	if state.ProcessedCount != 10 || state.SucceededCount != 10 {
		t.Fatalf("counts = %d/%d", state.SucceededCount, state.ProcessedCount)
	}
}

func TestRunAllSkipsCachedPages(t *testing.T) {
	texts := map[int]string{}
	for p := 6; p <= 10; p++ {
		texts[p] = fmt.Sprintf("page %d", p)
	}
	engine := &engineFake{texts: texts}
	jobs := &jobsRepoFake{}
	bulk, _, _ := newBulkForTest(10, engine, jobs, preloadedRecords(1, 5))

	state, err := bulk.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	for _, page := range engine.calls {
		if page <= 5 {
			t.Fatalf("recognition invoked for cached page %d", page)
		}
	}
	if len(engine.calls) != 5 {
		t.Fatalf("recognition calls = %v, want pages 6..10 only", engine.calls)
	}
	if state.SucceededCount != 10 {
		t.Fatalf("succeeded = %d, want 5 cached + 5 fresh", state.SucceededCount)
	}
}

func TestRunAllAdvancesPastFailedPages(t *testing.T) {
	texts := map[int]string{}
	for p := 1; p <= 6; p++ {
		texts[p] = fmt.Sprintf("page %d", p)
	}
	engine := &engineFake{texts: texts, errs: map[int]error{3: errors.New("ocr glitch"), 5: errors.New("ocr glitch")}}
	jobs := &jobsRepoFake{}
	bulk, pageCache, _ := newBulkForTest(6, engine, jobs, nil)

	state, err := bulk.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if state.Status != domain.JobCompleted {
		t.Fatalf("status = %q", state.Status)
	}
	if state.ProcessedCount != 6 {
		t.Fatalf("processed = %d, failed pages must still advance the job", state.ProcessedCount)
	}
	if state.SucceededCount != 4 {
		t.Fatalf("succeeded = %d, want 4", state.SucceededCount)
	}
	if _, ok := pageCache.Get(3); ok {
		t.Fatalf("failed page must stay uncached and retry-eligible")
	}
}

func TestRunAllCheckpointsEveryFivePagesAndOnCompletion(t *testing.T) {
	texts := map[int]string{}
	for p := 1; p <= 12; p++ {
		texts[p] = fmt.Sprintf("page %d", p)
	}
	engine := &engineFake{texts: texts}
	jobs := &jobsRepoFake{}
	bulk, _, _ := newBulkForTest(12, engine, jobs, nil)

	if _, err := bulk.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	if len(jobs.checkpoints) != 3 {
		t.Fatalf("checkpoints = %+v, want at pages 5, 10 and terminal", jobs.checkpoints)
	}
	if jobs.checkpoints[0].ProcessedCount != 5 || jobs.checkpoints[0].Status != domain.JobProcessing {
		t.Fatalf("first checkpoint = %+v", jobs.checkpoints[0])
	}
	if jobs.checkpoints[1].ProcessedCount != 10 {
		t.Fatalf("second checkpoint = %+v", jobs.checkpoints[1])
	}
	last := jobs.checkpoints[2]
	if last.Status != domain.JobCompleted || last.ProcessedCount != 12 {
		t.Fatalf("terminal checkpoint = %+v", last)
	}
}

func TestRunAllCancellationBetweenPages(t *testing.T) {
	texts := map[int]string{}
	for p := 1; p <= 10; p++ {
		texts[p] = fmt.Sprintf("page %d", p)
	}
	engine := &engineFake{texts: texts}
	jobs := &jobsRepoFake{}
	bulk, pageCache, _ := newBulkForTest(10, engine, jobs, nil)

	bulk.SetProgressFunc(func(state domain.BulkJobState) {
		if state.ProcessedCount == 3 {
			bulk.Cancel()
		}
	})

	state, err := bulk.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if state.Status != domain.JobCancelled {
		t.Fatalf("status = %q, want cancelled", state.Status)
	}
	if state.ProcessedCount != 3 {
		t.Fatalf("processed = %d, cancellation must take effect between pages", state.ProcessedCount)
	}
	for p := 1; p <= 3; p++ {
		if rec, ok := pageCache.Get(p); !ok || !rec.HasText() {
			t.Fatalf("cancellation must not roll back page %d", p)
		}
	}
	if engine.callsFor(4) != 0 {
		t.Fatalf("page 4 must not be extracted after cancellation")
	}
}

func TestRunAllCheckpointFailureStopsJob(t *testing.T) {
	texts := map[int]string{}
	for p := 1; p <= 10; p++ {
		texts[p] = fmt.Sprintf("page %d", p)
	}
	engine := &engineFake{texts: texts}
	jobs := &jobsRepoFake{updateErr: errors.New("job store unreachable")}
	bulk, _, _ := newBulkForTest(10, engine, jobs, nil)

	state, err := bulk.RunAll(context.Background())
	if err == nil {
		t.Fatalf("expected checkpoint failure to surface")
	}
	if state.Status != domain.JobFailed {
		t.Fatalf("status = %q, want failed", state.Status)
	}
	if state.ProcessedCount != 5 {
		t.Fatalf("processed = %d, job must stop at the failed checkpoint", state.ProcessedCount)
	}
}

func TestRunAllRejectedWhileSinglePageExtractionHoldsGate(t *testing.T) {
	engine := &engineFake{texts: map[int]string{1: "text"}}
	jobs := &jobsRepoFake{}
	bulk, _, extractor := newBulkForTest(3, engine, jobs, nil)

	if err := extractor.gate.Acquire("single-page extraction"); err != nil {
		t.Fatalf("gate acquire: %v", err)
	}
	defer extractor.gate.Release()

	_, err := bulk.RunAll(context.Background())
	if !domain.IsKind(err, domain.ErrExtractionBusy) {
		t.Fatalf("expected ErrExtractionBusy, got %v", err)
	}
}

func TestRunAllContextCancellation(t *testing.T) {
	texts := map[int]string{1: "page 1"}
	engine := &engineFake{texts: texts}
	jobs := &jobsRepoFake{}
	bulk, _, _ := newBulkForTest(10, engine, jobs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := bulk.RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if state.Status != domain.JobCancelled {
		t.Fatalf("status = %q, want cancelled", state.Status)
	}
	if state.ProcessedCount != 0 {
		t.Fatalf("processed = %d, want 0", state.ProcessedCount)
	}
}
