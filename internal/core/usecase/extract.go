package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/scanreader/internal/core/cache"
	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/ports"
)

// rasterScale is the oversampling factor for OCR payloads, balancing
// recognition accuracy against payload size.
const rasterScale = 2.5

// SingleFlightGate serializes extraction work for one document. On-demand
// single-page requests and the bulk controller share one gate, so at most one
// recognition call is ever in flight per document.
type SingleFlightGate struct {
	mu     sync.Mutex
	busy   bool
	holder string
}

func NewSingleFlightGate() *SingleFlightGate {
	return &SingleFlightGate{}
}

// Acquire claims the gate or reports who holds it.
func (g *SingleFlightGate) Acquire(holder string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return domain.WrapError(domain.ErrExtractionBusy, "acquire extraction gate", fmt.Errorf("held by %s", g.holder))
	}
	g.busy = true
	g.holder = holder
	return nil
}

func (g *SingleFlightGate) Release() {
	g.mu.Lock()
	g.busy = false
	g.holder = ""
	g.mu.Unlock()
}

// ExtractPageUseCase rasterizes a page, runs recognition and commits the
// result to the cache and the page-text store.
type ExtractPageUseCase struct {
	documentID string
	cache      *cache.PageTextCache
	renderer   ports.PageRenderer
	engine     ports.OCREngine
	pages      ports.PageTextRepository
	gate       *SingleFlightGate
	logger     *slog.Logger
}

func NewExtractPageUseCase(
	documentID string,
	pageCache *cache.PageTextCache,
	renderer ports.PageRenderer,
	engine ports.OCREngine,
	pages ports.PageTextRepository,
	gate *SingleFlightGate,
	logger *slog.Logger,
) *ExtractPageUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractPageUseCase{
		documentID: documentID,
		cache:      pageCache,
		renderer:   renderer,
		engine:     engine,
		pages:      pages,
		gate:       gate,
		logger:     logger,
	}
}

// ExtractPage returns the cached record when one with text exists, otherwise
// performs one recognition pass. A nil record with nil error means the page
// yielded nothing; it stays uncached and retry-eligible.
func (uc *ExtractPageUseCase) ExtractPage(ctx context.Context, pageNumber int) (*domain.PageTextRecord, error) {
	if pageNumber < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract page", errors.New("page number must be >= 1"))
	}
	if rec, ok := uc.cache.Get(pageNumber); ok && rec.HasText() {
		return &rec, nil
	}

	if err := uc.gate.Acquire("single-page extraction"); err != nil {
		return nil, err
	}
	defer uc.gate.Release()

	return uc.extractHoldingGate(ctx, pageNumber)
}

// extractHoldingGate assumes the caller holds the gate; the bulk controller
// claims it once for a whole run.
func (uc *ExtractPageUseCase) extractHoldingGate(ctx context.Context, pageNumber int) (*domain.PageTextRecord, error) {
	if rec, ok := uc.cache.Get(pageNumber); ok && rec.HasText() {
		return &rec, nil
	}

	raster, err := uc.renderer.Rasterize(ctx, uc.documentID, pageNumber, rasterScale)
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", pageNumber, err)
	}

	result, err := uc.engine.Recognize(ctx, raster.PNG, pageNumber)
	if err != nil {
		return nil, fmt.Errorf("recognize page %d: %w", pageNumber, err)
	}
	if strings.TrimSpace(result.Text) == "" {
		// Blank recognition is indistinguishable from a transient failure, so
		// nothing is cached and a later retry is not short-circuited.
		return nil, nil
	}

	rec := uc.cache.Put(pageNumber, result.Text)
	if err := uc.pages.UpsertPageText(ctx, uc.documentID, rec); err != nil {
		// The record already serves this session from the cache; durability
		// failed, so the page will be re-extracted next session.
		uc.logger.Error("persist page text failed",
			"document_id", uc.documentID,
			"page", pageNumber,
			"error", err,
		)
	}
	return &rec, nil
}
