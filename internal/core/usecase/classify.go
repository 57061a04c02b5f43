package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/ports"
)

const (
	// classifySampleSize is how many leading pages are sampled on open.
	classifySampleSize = 3
	// scannedThreshold is the average embedded-text length (characters per
	// sampled page) below which a document counts as scanned.
	scannedThreshold = 50.0
)

// ClassifyDocumentUseCase decides scanned vs text-based from a small prefix
// sample of embedded text. Cheap and deterministic, so the verdict is
// recomputed on every open instead of persisted.
type ClassifyDocumentUseCase struct {
	renderer ports.PageRenderer
}

func NewClassifyDocumentUseCase(renderer ports.PageRenderer) *ClassifyDocumentUseCase {
	return &ClassifyDocumentUseCase{renderer: renderer}
}

func (uc *ClassifyDocumentUseCase) Classify(ctx context.Context, documentID string) (domain.ClassificationResult, error) {
	total, err := uc.renderer.PageCount(ctx, documentID)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("page count: %w", err)
	}
	if total < 1 {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrInvalidInput, "classify document", errors.New("document has no pages"))
	}

	sampled := classifySampleSize
	if total < sampled {
		sampled = total
	}

	sum := 0
	for page := 1; page <= sampled; page++ {
		text, err := uc.renderer.EmbeddedText(ctx, documentID, page)
		if err != nil {
			// An unreadable page contributes zero length; a partially broken
			// document still gets a classification.
			continue
		}
		sum += utf8.RuneCountInString(strings.TrimSpace(text))
	}

	avg := float64(sum) / float64(sampled)
	return domain.ClassificationResult{
		IsScanned:     avg < scannedThreshold,
		SampledPages:  sampled,
		AverageLength: avg,
	}, nil
}
