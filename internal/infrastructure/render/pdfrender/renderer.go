// Package pdfrender reads source PDFs out of the document store and exposes
// page counts, embedded text and rasterized page images.
package pdfrender

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"sync"

	_ "image/jpeg"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/ports"
)

// Renderer implements ports.PageRenderer over a ports.DocumentStore.
// Parsed documents are kept in memory per document ID so page-by-page
// access does not re-read the store every time.
type Renderer struct {
	store  ports.DocumentStore
	logger *slog.Logger

	mu   sync.Mutex
	docs map[string][]byte
}

func NewRenderer(store ports.DocumentStore, logger *slog.Logger) *Renderer {
	return &Renderer{
		store:  store,
		logger: logger,
		docs:   make(map[string][]byte),
	}
}

func (r *Renderer) load(ctx context.Context, documentID string) ([]byte, error) {
	r.mu.Lock()
	data, ok := r.docs[documentID]
	r.mu.Unlock()
	if ok {
		return data, nil
	}

	rc, err := r.store.Open(ctx, documentID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open document", err)
	}
	defer rc.Close()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", documentID, err)
	}

	r.mu.Lock()
	r.docs[documentID] = data
	r.mu.Unlock()
	return data, nil
}

// Forget drops the cached bytes for a document, typically on session close.
func (r *Renderer) Forget(documentID string) {
	r.mu.Lock()
	delete(r.docs, documentID)
	r.mu.Unlock()
}

func (r *Renderer) PageCount(ctx context.Context, documentID string) (int, error) {
	data, err := r.load(ctx, documentID)
	if err != nil {
		return 0, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse document", err)
	}
	return reader.NumPage(), nil
}

// EmbeddedText returns the text layer of one page. Scanned pages typically
// come back empty.
func (r *Renderer) EmbeddedText(ctx context.Context, documentID string, pageNumber int) (string, error) {
	data, err := r.load(ctx, documentID)
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse document", err)
	}
	if pageNumber < 1 || pageNumber > reader.NumPage() {
		return "", domain.WrapError(domain.ErrInvalidInput, "embedded text",
			fmt.Errorf("page %d out of range 1..%d", pageNumber, reader.NumPage()))
	}

	page := reader.Page(pageNumber)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		// Broken text layers are treated the same as absent ones.
		r.logger.Warn("embedded_text_unreadable", "document_id", documentID, "page", pageNumber, "error", err)
		return "", nil
	}
	return text, nil
}

// Rasterize pulls the page's dominant image out of the PDF and resamples it
// by the given oversampling factor before recognition.
func (r *Renderer) Rasterize(ctx context.Context, documentID string, pageNumber int, scale float64) (ports.PageRaster, error) {
	data, err := r.load(ctx, documentID)
	if err != nil {
		return ports.PageRaster{}, err
	}

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return ports.PageRaster{}, domain.WrapError(domain.ErrInvalidInput, "parse document", err)
	}
	if pageNumber < 1 || pageNumber > pdfCtx.PageCount {
		return ports.PageRaster{}, domain.WrapError(domain.ErrInvalidInput, "rasterize",
			fmt.Errorf("page %d out of range 1..%d", pageNumber, pdfCtx.PageCount))
	}

	images, err := pdfcpu.ExtractPageImages(pdfCtx, pageNumber, false)
	if err != nil {
		return ports.PageRaster{}, fmt.Errorf("extract images from page %d: %w", pageNumber, err)
	}

	src, err := dominantImage(images)
	if err != nil {
		return ports.PageRaster{}, domain.WrapError(domain.ErrInvalidInput, "rasterize", err)
	}

	dst := resample(src, scale)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return ports.PageRaster{}, fmt.Errorf("encode page %d: %w", pageNumber, err)
	}

	bounds := dst.Bounds()
	r.logger.Debug("page_rasterized",
		"document_id", documentID,
		"page", pageNumber,
		"scale", scale,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
	)
	return ports.PageRaster{PNG: buf.Bytes(), Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// dominantImage picks the largest decodable image on the page. Scanned pages
// carry a single full-page image; decorations are smaller.
func dominantImage(images map[int]model.Image) (image.Image, error) {
	var best image.Image
	bestArea := 0
	for _, img := range images {
		if img.Reader == nil {
			continue
		}
		decoded, _, err := image.Decode(img.Reader)
		if err != nil {
			continue
		}
		area := decoded.Bounds().Dx() * decoded.Bounds().Dy()
		if area > bestArea {
			best = decoded
			bestArea = area
		}
	}
	if best == nil {
		return nil, fmt.Errorf("page has no decodable image")
	}
	return best, nil
}

func resample(src image.Image, scale float64) *image.RGBA {
	if scale <= 0 {
		scale = 1
	}
	bounds := src.Bounds()
	w := int(float64(bounds.Dx()) * scale)
	h := int(float64(bounds.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}
