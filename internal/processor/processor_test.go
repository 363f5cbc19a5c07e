package processor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-qa-go/internal/aggregator"
	"collection-qa-go/internal/extractor"
	"collection-qa-go/internal/storage"
	"collection-qa-go/internal/types"
)

const sampleTranscript = "[00:00.000 --> 00:06.000] Selamat pagi, saya Rina dari BFI Finance. Dengan Bapak Budi? " +
	"[00:06.000 --> 00:12.000] Angsuran Rp 1.250.000 sudah jatuh tempo. Iya, saya bayar tanggal 8."

type fakeStore struct {
	mu       sync.Mutex
	saved    []map[string]any
	scenario []types.ScenarioType
	err      error
}

func (f *fakeStore) Save(_ context.Context, _ string, cd types.CallData, _ types.QAScore, md map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, md)
	f.scenario = append(f.scenario, cd.Scenario())
	return "id-1", nil
}

type fakeTranscriber struct{ text string }

func (f fakeTranscriber) Transcribe(context.Context, string) (string, error) { return f.text, nil }

func newTestProcessor(t *testing.T, svc extractor.Service, store Store) *Processor {
	t.Helper()
	engine, err := aggregator.New(aggregator.DefaultConfig())
	require.NoError(t, err)
	return New(Options{
		Service:   svc,
		Engine:    engine,
		Store:     store,
		ModelInfo: extractor.ModelInfo{Provider: "mock", Model: "mock", Temperature: 0.1},
	})
}

func TestAnalyze(t *testing.T) {
	store := &fakeStore{}
	mock := extractor.NewMock()
	res, err := newTestProcessor(t, mock, store).Analyze(context.Background(), sampleTranscript)
	require.NoError(t, err)

	assert.Equal(t, "id-1", res.ID)
	assert.Equal(t, types.ScenarioPTP, res.Classification.Scenario())
	assert.Equal(t, aggregator.NeedsImprovement, res.Verdict.Status)
	// 0.06 + 0.25*(2.5/3) + 0.40*(1.6/3)
	assert.InDelta(t, 0.4817, res.QA.TotalScore, 1e-4)
	assert.InDelta(t, res.QA.TotalScore, res.QA.ScoreBreakdown.Sum(), 1e-9)
	assert.Equal(t, "Rina", res.Hints.AgentName)
	assert.Equal(t, 0.8, res.Confidence.ClassificationConfidence)
	assert.Contains(t, res.Findings.CriticalIssues, "Overall score below 70%")
	assert.Equal(t, []extractor.Schema{extractor.SchemaCallData, extractor.SchemaQAScore}, mock.Calls())

	require.Len(t, store.saved, 1)
	md := store.saved[0]
	assert.Equal(t, "mock", md["model_name"])
	assert.Equal(t, 0.1, md["temperature"])
	assert.Contains(t, md, "duration_ms")
	assert.Contains(t, md, "hints")
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(m *extractor.Mock)
		assert func(t *testing.T, err error)
	}{
		{
			name:  "service failure",
			setup: func(m *extractor.Mock) { m.Err = errors.New("gateway down") },
			assert: func(t *testing.T, err error) {
				var ef *types.ExtractionFailure
				require.ErrorAs(t, err, &ef)
				assert.Equal(t, "CallData", ef.Schema)
				assert.EqualError(t, ef.Err, "gateway down")
			},
		},
		{
			name:  "malformed json",
			setup: func(m *extractor.Mock) { m.Responses[extractor.SchemaQAScore] = []byte("not json") },
			assert: func(t *testing.T, err error) {
				var ef *types.ExtractionFailure
				require.ErrorAs(t, err, &ef)
				assert.Equal(t, "QAScore", ef.Schema)
			},
		},
		{
			name: "scenario without its detail",
			setup: func(m *extractor.Mock) {
				m.Responses[extractor.SchemaCallData] = []byte(`{"basic_info": {"scenario_type": "PTP"}, "call_summary": "x"}`)
			},
			assert: func(t *testing.T, err error) {
				var sv *types.SchemaViolation
				assert.ErrorAs(t, err, &sv)
			},
		},
		{
			name: "invalid score level",
			setup: func(m *extractor.Mock) {
				m.Responses[extractor.SchemaQAScore] = []byte(`{"opening_score": {"greeting_score": 0.7}}`)
			},
			assert: func(t *testing.T, err error) {
				var il *types.InvalidScoreLevel
				assert.ErrorAs(t, err, &il)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := extractor.NewMock()
			tt.setup(m)
			store := &fakeStore{}
			res, err := newTestProcessor(t, m, store).Analyze(context.Background(), sampleTranscript)
			require.Error(t, err)
			tt.assert(t, err)
			assert.Zero(t, res, "a failed analysis carries no partial result")
			assert.Empty(t, store.saved)
		})
	}
}

func TestAnalyzeEmptyTranscript(t *testing.T) {
	m := extractor.NewMock()
	_, err := newTestProcessor(t, m, nil).Analyze(context.Background(), " [00:00.000 --> 00:01.000] ")
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.Empty(t, m.Calls())
}

func TestAnalyzeStoreFailure(t *testing.T) {
	res, err := newTestProcessor(t, extractor.NewMock(), &fakeStore{err: errors.New("disk full")}).
		Analyze(context.Background(), sampleTranscript)
	assert.EqualError(t, err, "persist analysis: disk full")
	assert.Zero(t, res)
}

func TestAnalyzeRecord(t *testing.T) {
	p := newTestProcessor(t, extractor.NewMock(), nil)
	_, err := p.AnalyzeRecord(context.Background(), types.CallRecord{AudioURL: "https://cdn.example/1.wav"})
	assert.ErrorIs(t, err, ErrNoTranscriber)

	p.transcriber = fakeTranscriber{text: sampleTranscript}
	res, err := p.AnalyzeRecord(context.Background(), types.CallRecord{AudioURL: "https://cdn.example/1.wav"})
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript, res.Transcript)
	assert.Empty(t, res.ID)
}

func TestAnalyzeBatch(t *testing.T) {
	store := &fakeStore{}
	recs := []types.CallRecord{
		{CallID: "a", Transcript: sampleTranscript},
		{CallID: "b", Transcript: "   "},
		{CallID: "c", Transcript: sampleTranscript},
	}
	items := newTestProcessor(t, extractor.NewMock(), store).AnalyzeBatch(context.Background(), recs, 2)

	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Record.CallID)
	assert.NoError(t, items[0].Err)
	assert.ErrorIs(t, items[1].Err, ErrEmptyTranscript)
	assert.NoError(t, items[2].Err)
	assert.Len(t, store.saved, 2)
}

func TestAnalyzeBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := newTestProcessor(t, extractor.NewMock(), nil).
		AnalyzeBatch(ctx, []types.CallRecord{{CallID: "a", Transcript: sampleTranscript}}, 1)
	assert.ErrorIs(t, items[0].Err, context.Canceled)
}

func TestAnalyzePersistsToSQLite(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "analysis.db"), aggregator.DefaultPassThreshold)
	require.NoError(t, err)
	defer store.Close()

	res, err := newTestProcessor(t, extractor.NewMock(), store).Analyze(context.Background(), sampleTranscript)
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ScenarioPTP, rec.ScenarioType)
	assert.InDelta(t, res.QA.TotalScore, rec.QAScore, 1e-9)
	assert.Equal(t, "mock", rec.Metadata["model_name"])
}
