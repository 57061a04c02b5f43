package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/ports"
	"github.com/kirillkom/scanreader/internal/core/usecase"
	"github.com/kirillkom/scanreader/internal/export"
	"github.com/kirillkom/scanreader/internal/observability/metrics"
)

const maxUploadBytes = 128 << 20

type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int

	// OnClose runs after a session is discarded, letting infrastructure
	// drop per-document caches.
	OnClose func(documentID string)
}

type Router struct {
	sessions *usecase.SessionManager
	queue    ports.MessageQueue
	jobs     ports.JobStatusRepository
	store    ports.DocumentStore
	exporter *export.Service
	metrics  *metrics.HTTPMetrics
	opts     Options
}

func NewRouter(
	sessions *usecase.SessionManager,
	queue ports.MessageQueue,
	jobs ports.JobStatusRepository,
	store ports.DocumentStore,
	exporter *export.Service,
	httpMetrics *metrics.HTTPMetrics,
	opts Options,
) *Router {
	return &Router{
		sessions: sessions,
		queue:    queue,
		jobs:     jobs,
		store:    store,
		exporter: exporter,
		metrics:  httpMetrics,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("POST /v1/documents/{id}/open", rt.openDocument)
	mux.HandleFunc("POST /v1/documents/{id}/close", rt.closeDocument)
	mux.HandleFunc("POST /v1/documents/{id}/extract", rt.requestBulkExtract)
	mux.HandleFunc("POST /v1/documents/{id}/pages/{page}/extract", rt.extractPage)
	mux.HandleFunc("GET /v1/documents/{id}/progress", rt.progress)
	mux.HandleFunc("GET /v1/documents/{id}/search", rt.search)
	mux.HandleFunc("GET /v1/documents/{id}/export", rt.exportReport)
	mux.HandleFunc("POST /v1/documents/{id}/cancel", rt.cancelBulkExtract)

	var handler http.Handler = mux
	handler = rt.metricsMiddleware(mux, handler)
	if rt.opts.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxConcurrent, backpressureWait)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	documentID := uuid.NewString()
	if err := rt.store.Save(r.Context(), documentID, file); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"document_id": documentID})
}

type openResponse struct {
	DocumentID    string  `json:"document_id"`
	TotalPages    int     `json:"total_pages"`
	IsScanned     bool    `json:"is_scanned"`
	PagesWithText int     `json:"pages_with_text"`
	SampledPages  int     `json:"sampled_pages"`
	AverageLength float64 `json:"average_embedded_length"`
}

func (rt *Router) openDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	session, err := rt.sessions.Open(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, openResponse{
		DocumentID:    session.DocumentID,
		TotalPages:    session.TotalPages,
		IsScanned:     session.Classification.IsScanned,
		PagesWithText: session.PagesWithText(),
		SampledPages:  session.Classification.SampledPages,
		AverageLength: session.Classification.AverageLength,
	})
}

func (rt *Router) closeDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if session, ok := rt.sessions.Get(documentID); ok {
		session.Bulk.Cancel()
	}
	rt.sessions.Close(documentID)
	if rt.opts.OnClose != nil {
		rt.opts.OnClose(documentID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (rt *Router) requestBulkExtract(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	// Opening validates the document exists before a request is queued.
	if _, err := rt.sessions.Open(r.Context(), documentID); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.queue.PublishExtractRequested(r.Context(), documentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type pageTextResponse struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	Origin     string `json:"origin,omitempty"`
}

func (rt *Router) extractPage(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	pageNumber, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "extract page", fmt.Errorf("page must be an integer")))
		return
	}

	session, err := rt.sessions.Open(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := session.Extractor.ExtractPage(r.Context(), pageNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := pageTextResponse{PageNumber: pageNumber}
	if rec != nil {
		resp.Text = rec.RawText
		resp.Origin = string(rec.Origin)
	}
	writeJSON(w, http.StatusOK, resp)
}

type progressResponse struct {
	DocumentID     string `json:"document_id"`
	TotalPages     int    `json:"total_pages"`
	ProcessedCount int    `json:"processed_count"`
	SucceededCount int    `json:"succeeded_count"`
	Status         string `json:"status"`
}

func (rt *Router) progress(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	// A live in-process job is fresher than its last checkpoint.
	if session, ok := rt.sessions.Get(documentID); ok {
		if state := session.Bulk.State(); state.Status != domain.JobIdle {
			writeJSON(w, http.StatusOK, toProgressResponse(state))
			return
		}
	}

	state, err := rt.jobs.GetJobProgress(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressResponse(state))
}

func toProgressResponse(state domain.BulkJobState) progressResponse {
	return progressResponse{
		DocumentID:     state.DocumentID,
		TotalPages:     state.TotalPages,
		ProcessedCount: state.ProcessedCount,
		SucceededCount: state.SucceededCount,
		Status:         string(state.Status),
	}
}

type searchMatchResponse struct {
	PageNumber   int    `json:"page_number"`
	MatchOrdinal int    `json:"match_ordinal"`
	ContextText  string `json:"context_text"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("query parameter 'q' is required")))
		return
	}

	session, err := rt.sessions.Open(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}

	matches, err := session.Searcher.Search(query)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.SearchMatches.Observe(float64(len(matches)))

	out := make([]searchMatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, searchMatchResponse{
			PageNumber:   m.PageNumber,
			MatchOrdinal: m.MatchOrdinal,
			ContextText:  m.ContextText,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": out, "total": len(out)})
}

func (rt *Router) exportReport(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	session, err := rt.sessions.Open(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}

	raw, err := rt.exporter.ExtractionReportXLSX(documentID, session.TotalPages, session.Cache.SnapshotWithText())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "extraction-"+documentID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (rt *Router) cancelBulkExtract(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	session, ok := rt.sessions.Get(documentID)
	if !ok {
		writeError(w, domain.WrapError(domain.ErrDocumentNotFound, "cancel", fmt.Errorf("no open session for %s", documentID)))
		return
	}
	session.Bulk.Cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel_requested"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
