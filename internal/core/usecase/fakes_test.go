package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/ports"
)

type rendererFake struct {
	pageCount    int
	pageCountErr error
	embedded     map[int]string
	embeddedErr  map[int]error
	rasterErr    map[int]error
	rasterCalls  []int
}

func (f *rendererFake) PageCount(context.Context, string) (int, error) {
	if f.pageCountErr != nil {
		return 0, f.pageCountErr
	}
	return f.pageCount, nil
}

func (f *rendererFake) EmbeddedText(_ context.Context, _ string, page int) (string, error) {
	if err, ok := f.embeddedErr[page]; ok {
		return "", err
	}
	return f.embedded[page], nil
}

func (f *rendererFake) Rasterize(_ context.Context, _ string, page int, _ float64) (ports.PageRaster, error) {
	f.rasterCalls = append(f.rasterCalls, page)
	if err, ok := f.rasterErr[page]; ok {
		return ports.PageRaster{}, err
	}
	return ports.PageRaster{PNG: []byte{0x89, 'P', 'N', 'G'}, Width: 100, Height: 140}, nil
}

type engineFake struct {
	texts    map[int]string
	errs     map[int]error
	calls    []int
	failWith error
}

func (f *engineFake) Recognize(_ context.Context, _ []byte, page int) (ports.OCRResult, error) {
	f.calls = append(f.calls, page)
	if f.failWith != nil {
		return ports.OCRResult{}, f.failWith
	}
	if err, ok := f.errs[page]; ok {
		return ports.OCRResult{}, err
	}
	return ports.OCRResult{Text: f.texts[page]}, nil
}

func (f *engineFake) callsFor(page int) int {
	n := 0
	for _, p := range f.calls {
		if p == page {
			n++
		}
	}
	return n
}

type pagesRepoFake struct {
	mu        sync.Mutex
	upserts   []domain.PageTextRecord
	upsertErr error
	records   []domain.PageTextRecord
	listErr   error
}

func (f *pagesRepoFake) UpsertPageText(_ context.Context, _ string, rec domain.PageTextRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	f.upserts = append(f.upserts, rec)
	f.mu.Unlock()
	return nil
}

func (f *pagesRepoFake) ListPageText(context.Context, string) ([]domain.PageTextRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

type jobsRepoFake struct {
	mu          sync.Mutex
	checkpoints []domain.BulkJobState
	updateErr   error
	failAfter   int
}

func (f *jobsRepoFake) UpdateJobProgress(_ context.Context, state domain.BulkJobState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil && len(f.checkpoints) >= f.failAfter {
		return f.updateErr
	}
	f.checkpoints = append(f.checkpoints, state)
	return nil
}

func (f *jobsRepoFake) GetJobProgress(context.Context, string) (domain.BulkJobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.checkpoints) == 0 {
		return domain.BulkJobState{}, errors.New("no progress recorded")
	}
	return f.checkpoints[len(f.checkpoints)-1], nil
}
