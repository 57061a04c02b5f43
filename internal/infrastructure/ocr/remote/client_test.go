package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/infrastructure/resilience"
)

func testOptions(baseURL string) Options {
	return Options{
		BaseURL:        baseURL,
		Model:          "ocr-test",
		Timeout:        2 * time.Second,
		RequestsPerSec: 1000,
		Resilience: resilience.Config{
			RetryMaxAttempts:    3,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     2 * time.Millisecond,
			RetryMultiplier:     2.0,
			BreakerEnabled:      false,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRecognizeSendsImageAndReturnsText(t *testing.T) {
	var gotReq recognizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/recognize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(recognizeResponse{Text: "صفحة ١"})
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testLogger())
	res, err := c.Recognize(context.Background(), []byte{0x89, 0x50}, 4)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if res.Text != "صفحة ١" {
		t.Fatalf("text = %q", res.Text)
	}
	if gotReq.PageNumber != 4 || gotReq.Model != "ocr-test" {
		t.Fatalf("request = %+v", gotReq)
	}
	if gotReq.ImagePNG != base64.StdEncoding.EncodeToString([]byte{0x89, 0x50}) {
		t.Fatalf("image not base64-encoded: %q", gotReq.ImagePNG)
	}
}

func TestRecognizeEmptyTextIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(recognizeResponse{Text: ""})
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testLogger())
	res, err := c.Recognize(context.Background(), []byte{1}, 1)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if res.Text != "" {
		t.Fatalf("text = %q, want empty", res.Text)
	}
}

func TestRecognizeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(recognizeResponse{Text: "ok"})
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testLogger())
	res, err := c.Recognize(context.Background(), []byte{1}, 1)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if res.Text != "ok" {
		t.Fatalf("text = %q", res.Text)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestRecognizeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad image", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testLogger())
	_, err := c.Recognize(context.Background(), []byte{1}, 1)
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("client error must not be marked temporary: %v", err)
	}
}

func TestRecognizeExhaustedRetriesAreTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testLogger())
	_, err := c.Recognize(context.Background(), []byte{1}, 1)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestRecognizeStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Errorf("server must not be reached")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(testOptions(srv.URL), testLogger())
	_, err := c.Recognize(ctx, []byte{1}, 1)
	if err == nil {
		t.Fatalf("expected error")
	}
}
