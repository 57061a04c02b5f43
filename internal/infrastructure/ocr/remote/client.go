// Package remote talks to the external text-recognition service over HTTP.
package remote

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/ports"
	"github.com/kirillkom/scanreader/internal/infrastructure/resilience"
)

const (
	defaultTimeout     = 120 * time.Second
	defaultRequestsSec = 2
)

type Options struct {
	BaseURL        string
	Model          string
	Timeout        time.Duration
	RequestsPerSec float64
	Resilience     resilience.Config
}

// Client implements ports.OCREngine against a remote recognition endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	logger     *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = defaultRequestsSec
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      opts.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		executor:   resilience.NewExecutor("ocr", opts.Resilience, classifyError),
		logger:     logger,
	}
}

type recognizeRequest struct {
	Model      string `json:"model,omitempty"`
	PageNumber int    `json:"page_number"`
	ImagePNG   string `json:"image_png"`
}

type recognizeResponse struct {
	Text string `json:"text"`
}

// Recognize sends the page image to the service and returns its text.
// An empty Text on success is a valid answer: the page carries nothing
// readable. Transport and service failures come back as errors, transient
// ones wrapped as domain.ErrTemporary so callers can tell them apart.
func (c *Client) Recognize(ctx context.Context, image []byte, pageNumber int) (ports.OCRResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ports.OCRResult{}, err
	}

	req := recognizeRequest{
		Model:      c.model,
		PageNumber: pageNumber,
		ImagePNG:   base64.StdEncoding.EncodeToString(image),
	}

	var resp recognizeResponse
	started := time.Now()
	err := c.executor.Execute(ctx, "recognize", func(ctx context.Context) error {
		resp = recognizeResponse{}
		return c.postJSON(ctx, "/v1/recognize", req, &resp)
	})
	if err != nil {
		return ports.OCRResult{}, c.wrapFailure(err, pageNumber)
	}

	c.logger.Debug("ocr_recognize_done",
		"page", pageNumber,
		"image_bytes", len(image),
		"text_len", len(resp.Text),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return ports.OCRResult{Text: resp.Text}, nil
}

func (c *Client) wrapFailure(err error, pageNumber int) error {
	c.logger.Error("ocr_recognize_failed", "page", pageNumber, "error", err)
	if resilience.IsCircuitOpen(err) || classifyError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "recognize page", err)
	}
	return domain.WrapError(domain.ErrInvalidInput, "recognize page", err)
}
