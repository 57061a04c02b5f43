package ports

import (
	"context"

	"github.com/kirillkom/scanreader/internal/core/domain"
)

// PageExtractor is the inbound contract for on-demand single-page extraction.
type PageExtractor interface {
	ExtractPage(ctx context.Context, pageNumber int) (*domain.PageTextRecord, error)
}

// BulkExtractor drives extraction across a whole document.
type BulkExtractor interface {
	RunAll(ctx context.Context) (domain.BulkJobState, error)
	State() domain.BulkJobState
	Cancel()
}

// PageSearcher answers substring queries over extracted pages.
type PageSearcher interface {
	Search(query string) ([]domain.SearchMatch, error)
}

// DocumentClassifier decides whether a document is scanned or text-based.
type DocumentClassifier interface {
	Classify(ctx context.Context, documentID string) (domain.ClassificationResult, error)
}
