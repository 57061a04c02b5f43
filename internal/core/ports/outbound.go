package ports

import (
	"context"
	"io"

	"github.com/kirillkom/scanreader/internal/core/domain"
)

// PageRaster is an encoded page image handed to the recognition service.
type PageRaster struct {
	PNG    []byte
	Width  int
	Height int
}

// PageRenderer is the rendering collaborator: it knows how many pages a
// document has, what embedded text a page carries, and how to rasterize a
// page at an oversampling factor.
type PageRenderer interface {
	PageCount(ctx context.Context, documentID string) (int, error)
	EmbeddedText(ctx context.Context, documentID string, pageNumber int) (string, error)
	Rasterize(ctx context.Context, documentID string, pageNumber int, scale float64) (PageRaster, error)
}

// OCRResult carries recognized text for one page image. A successful call
// with empty Text means the service found nothing; call failure is an error.
type OCRResult struct {
	Text string
}

// OCREngine is the remote text-recognition collaborator.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte, pageNumber int) (OCRResult, error)
}

// PageTextRepository persists extracted page text keyed by
// (document, page number).
type PageTextRepository interface {
	UpsertPageText(ctx context.Context, documentID string, rec domain.PageTextRecord) error
	ListPageText(ctx context.Context, documentID string) ([]domain.PageTextRecord, error)
}

// JobStatusRepository persists bulk job checkpoints so other views of the
// same document can display progress without subscribing to this process.
type JobStatusRepository interface {
	UpdateJobProgress(ctx context.Context, state domain.BulkJobState) error
	GetJobProgress(ctx context.Context, documentID string) (domain.BulkJobState, error)
}

// MessageQueue publishes/consumes bulk extraction requests.
type MessageQueue interface {
	PublishExtractRequested(ctx context.Context, documentID string) error
	SubscribeExtractRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// DocumentStore stores source document files.
type DocumentStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
