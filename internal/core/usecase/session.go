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

// DocumentSession owns the mutable state of one open document: the page text
// cache, the extraction gate, and the use cases wired to them. Constructed at
// document open, discarded at close; nothing here is ambient.
type DocumentSession struct {
	DocumentID     string
	TotalPages     int
	Classification domain.ClassificationResult

	Cache     *cache.PageTextCache
	Extractor *ExtractPageUseCase
	Bulk      *BulkExtractUseCase
	Searcher  *SearchUseCase
}

// PagesWithText reports how many pages already carry extracted text, which
// clients use to decide whether to prompt for bulk extraction.
func (s *DocumentSession) PagesWithText() int {
	return s.Cache.SizeWithText()
}

// SessionManager hands out one session per document ID, hydrating the cache
// from the page-text store and classifying the document on first open.
type SessionManager struct {
	renderer   ports.PageRenderer
	engine     ports.OCREngine
	pages      ports.PageTextRepository
	jobs       ports.JobStatusRepository
	classifier *ClassifyDocumentUseCase
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*DocumentSession
}

func NewSessionManager(
	renderer ports.PageRenderer,
	engine ports.OCREngine,
	pages ports.PageTextRepository,
	jobs ports.JobStatusRepository,
	logger *slog.Logger,
) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		renderer:   renderer,
		engine:     engine,
		pages:      pages,
		jobs:       jobs,
		classifier: NewClassifyDocumentUseCase(renderer),
		logger:     logger,
		sessions:   make(map[string]*DocumentSession),
	}
}

// Open returns the existing session for the document or builds one.
func (m *SessionManager) Open(ctx context.Context, documentID string) (*DocumentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[documentID]; ok {
		return session, nil
	}

	totalPages, err := m.renderer.PageCount(ctx, documentID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open document", err)
	}

	records, err := m.pages.ListPageText(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("hydrate page text: %w", err)
	}
	pageCache := cache.New()
	pageCache.LoadAll(records)

	classification, err := m.classifier.Classify(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("classify document: %w", err)
	}

	gate := NewSingleFlightGate()
	extractor := NewExtractPageUseCase(documentID, pageCache, m.renderer, m.engine, m.pages, gate, m.logger)
	bulk := NewBulkExtractUseCase(documentID, totalPages, extractor, pageCache, m.jobs, gate, m.logger)

	session := &DocumentSession{
		DocumentID:     documentID,
		TotalPages:     totalPages,
		Classification: classification,
		Cache:          pageCache,
		Extractor:      extractor,
		Bulk:           bulk,
		Searcher:       NewSearchUseCase(pageCache),
	}
	m.sessions[documentID] = session

	m.logger.Info("document session opened",
		"document_id", documentID,
		"total_pages", totalPages,
		"is_scanned", classification.IsScanned,
		"pages_with_text", pageCache.SizeWithText(),
	)
	return session, nil
}

// Get returns an already-open session without side effects.
func (m *SessionManager) Get(documentID string) (*DocumentSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[documentID]
	return session, ok
}

// Close discards the session for a document. Persistence retains the page
// text; a reopened session rehydrates from it.
func (m *SessionManager) Close(documentID string) {
	m.mu.Lock()
	delete(m.sessions, documentID)
	m.mu.Unlock()
}
