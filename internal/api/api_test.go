package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-qa-go/internal/aggregator"
	"collection-qa-go/internal/extractor"
	"collection-qa-go/internal/logger"
	"collection-qa-go/internal/processor"
	"collection-qa-go/internal/storage"
	"collection-qa-go/internal/types"
)

const transcriptText = "Selamat pagi, saya Rina dari BFI Finance. Dengan Bapak Budi? Iya, saya bayar tanggal 8."

func newTestServer(t *testing.T, mock *extractor.Mock) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "api.db"), aggregator.DefaultPassThreshold)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine, err := aggregator.New(aggregator.DefaultConfig())
	require.NoError(t, err)
	p := processor.New(processor.Options{Service: mock, Engine: engine, Store: store})
	return New(p, store, logger.Discard()).Routes(), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t, extractor.NewMock())
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAnalyzeAndRead(t *testing.T) {
	mock := extractor.NewMock()
	mock.Responses[extractor.SchemaQAScore] = []byte(`{
		"opening_score": {"greeting_score": 1, "customer_name_verification": "COMPLIANT"},
		"communication_score": {"voice_tone_score": 1, "speaking_pace_score": 1, "language_etiquette_score": 1},
		"knockout_violations": {"other_violations": ["threatened the customer"]},
		"score_breakdown": {"opening": 0.06}
	}`)
	h, _ := newTestServer(t, mock)

	rec := do(t, h, http.MethodPost, "/analyze", `{"transcript": "`+transcriptText+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		ID      string `json:"id"`
		Verdict struct {
			Status          string   `json:"verdict"`
			KnockoutReasons []string `json:"knockout_reasons"`
		} `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.ID)
	assert.Equal(t, "FAIL", res.Verdict.Status)
	assert.NotEmpty(t, res.Verdict.KnockoutReasons)

	rec = do(t, h, http.MethodGet, "/analyses/"+res.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"scenario_type": "PTP"`)

	rec = do(t, h, http.MethodGet, "/analyses/"+res.ID+"/issues", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var issues []storage.Issue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "threatened the customer", issues[0].Description)

	rec = do(t, h, http.MethodGet, "/analyses/"+res.ID+"/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "\n  \"id\"")

	rec = do(t, h, http.MethodGet, "/analyses?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []storage.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st storage.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.TotalCount)
	assert.Equal(t, 0.0, st.PassingRate)
}

func TestAnalyzeBadRequests(t *testing.T) {
	h, _ := newTestServer(t, extractor.NewMock())
	for _, body := range []string{`{}`, `{"transcript": "   "}`, `not json`} {
		rec := do(t, h, http.MethodPost, "/analyze", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	rec := do(t, h, http.MethodGet, "/analyses?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFound(t *testing.T) {
	h, _ := newTestServer(t, extractor.NewMock())
	for _, path := range []string{"/analyses/nope", "/analyses/nope/export", "/analyses/nope/issues"} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

type stubAnalyzer struct{ err error }

func (s stubAnalyzer) AnalyzeRecord(context.Context, types.CallRecord) (processor.Result, error) {
	return processor.Result{}, s.err
}

func TestAnalyzeErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&types.SchemaViolation{Field: "ptp_details", Reason: "required"}, http.StatusUnprocessableEntity},
		{&types.InvalidScoreLevel{Field: "opening_score.greeting_score", Value: "0.7"}, http.StatusUnprocessableEntity},
		{&types.ExtractionFailure{Schema: "QAScore", Err: errors.New("timeout")}, http.StatusBadGateway},
		{processor.ErrNoTranscriber, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := New(stubAnalyzer{err: tt.err}, nil, logger.Discard()).Routes()
			rec := do(t, h, http.MethodPost, "/analyze", `{"audio_url": "https://cdn.example/1.wav"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
