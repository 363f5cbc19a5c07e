// Package api exposes analysis and stored results over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"collection-qa-go/internal/logger"
	"collection-qa-go/internal/processor"
	"collection-qa-go/internal/storage"
	"collection-qa-go/internal/types"
)

const maxBodyBytes = 4 << 20

type Analyzer interface {
	AnalyzeRecord(ctx context.Context, rec types.CallRecord) (processor.Result, error)
}

type Store interface {
	Get(ctx context.Context, id string) (storage.Record, error)
	ListRecent(ctx context.Context, limit int) ([]storage.Summary, error)
	Statistics(ctx context.Context) (storage.Statistics, error)
	CriticalIssues(ctx context.Context, analysisID string) ([]storage.Issue, error)
	Export(ctx context.Context, id string, w io.Writer) error
}

type Handler struct {
	analyzer Analyzer
	store    Store
	log      *logger.Logger
}

// AnalyzeRequest is the body of POST /analyze. A transcript wins over an
// audio URL.
type AnalyzeRequest struct {
	Transcript string `json:"transcript"`
	AudioURL   string `json:"audio_url"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Schema string `json:"schema,omitempty"`
}

func New(analyzer Analyzer, store Store, log *logger.Logger) *Handler {
	return &Handler{analyzer: analyzer, store: store, log: log}
}

// Routes returns the service mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("POST /analyze", h.analyze)
	mux.HandleFunc("GET /analyses", h.listRecent)
	mux.HandleFunc("GET /analyses/{id}", h.get)
	mux.HandleFunc("GET /analyses/{id}/export", h.export)
	mux.HandleFunc("GET /analyses/{id}/issues", h.issues)
	mux.HandleFunc("GET /stats", h.stats)
	return mux
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "analyze")

	var req AnalyzeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		reqLog.WithError(err).Warn("bad request body")
		writeError(w, reqLog, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	req.Transcript = strings.TrimSpace(req.Transcript)
	req.AudioURL = strings.TrimSpace(req.AudioURL)
	if req.Transcript == "" && req.AudioURL == "" {
		writeError(w, reqLog, http.StatusBadRequest, errorResponse{Error: "transcript or audio_url is required"})
		return
	}

	res, err := h.analyzer.AnalyzeRecord(r.Context(), types.CallRecord{
		CallID:     logger.RequestID(r),
		Transcript: req.Transcript,
		AudioURL:   req.AudioURL,
	})
	if err != nil {
		status, body := classify(err)
		reqLog.WithError(err).WithField("status", status).Warn("analysis failed")
		writeError(w, reqLog, status, body)
		return
	}
	reqLog.WithField("analysis_id", res.ID).WithField("verdict", string(res.Verdict.Status)).Info("analysis complete")
	writeJSON(w, reqLog, http.StatusOK, res)
}

// classify maps analysis errors to a status code.
func classify(err error) (int, errorResponse) {
	var (
		sv *types.SchemaViolation
		il *types.InvalidScoreLevel
		ef *types.ExtractionFailure
	)
	switch {
	case errors.As(err, &sv):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: sv.Field}
	case errors.As(err, &il):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: il.Field}
	case errors.As(err, &ef):
		return http.StatusBadGateway, errorResponse{Error: err.Error(), Schema: ef.Schema}
	case errors.Is(err, processor.ErrEmptyTranscript), errors.Is(err, processor.ErrNoTranscriber):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: err.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal error"}
}

func (h *Handler) listRecent(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "list")
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, reqLog, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	list, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.storeError(w, reqLog, err)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "get")
	rec, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, reqLog, err)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, rec)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "export")
	id := r.PathValue("id")
	var buf bytes.Buffer
	if err := h.store.Export(r.Context(), id, &buf); err != nil {
		h.storeError(w, reqLog, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="analysis_%s.json"`, id))
	if _, err := buf.WriteTo(w); err != nil {
		reqLog.WithError(err).Error("failed to write export")
	}
}

func (h *Handler) issues(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "issues")
	id := r.PathValue("id")
	if _, err := h.store.Get(r.Context(), id); err != nil {
		h.storeError(w, reqLog, err)
		return
	}
	list, err := h.store.CriticalIssues(r.Context(), id)
	if err != nil {
		h.storeError(w, reqLog, err)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, list)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "stats")
	st, err := h.store.Statistics(r.Context())
	if err != nil {
		h.storeError(w, reqLog, err)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, st)
}

func (h *Handler) storeError(w http.ResponseWriter, log *logrus.Entry, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, log, http.StatusNotFound, errorResponse{Error: "analysis not found"})
		return
	}
	log.WithError(err).Error("store query failed")
	writeError(w, log, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeError(w http.ResponseWriter, log *logrus.Entry, status int, body errorResponse) {
	writeJSON(w, log, status, body)
}

func writeJSON(w http.ResponseWriter, log *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
