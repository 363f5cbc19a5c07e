package dataset

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"collection-qa-go/internal/aggregator"
	"collection-qa-go/internal/types"
)

func writeSheet(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calls.xlsx")
	f := excelize.NewFile()
	for i, r := range rows {
		row := r
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestLoad(t *testing.T) {
	path := writeSheet(t, [][]any{
		{"Call ID", "Recording Link", "Transcript"},
		{"c-1", "https://cdn.example/1.wav", ""},
		{"c-2", "", "Halo, dengan Bapak Budi?"},
		{"c-3", "not a url", ""},
		{"", "", "tanpa id"},
	})

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []types.CallRecord{
		{CallID: "c-1", AudioURL: "https://cdn.example/1.wav"},
		{CallID: "c-2", Transcript: "Halo, dengan Bapak Budi?"},
		{CallID: "5", Transcript: "tanpa id"},
	}, got)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)

	_, err = Load(writeSheet(t, [][]any{{"Call ID", "Transcript"}}))
	assert.EqualError(t, err, "no data rows")

	_, err = Load(writeSheet(t, [][]any{{"Call ID", "City"}, {"c-1", "Jakarta"}}))
	assert.Error(t, err)
}

func TestDetectColumns(t *testing.T) {
	c := detectColumns([]string{"city", "call_id", "audio_url", "transcript_text"})
	assert.Equal(t, columns{id: 1, audio: 2, transcript: 3}, c)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	ts := time.Date(2025, 12, 1, 8, 30, 0, 0, time.UTC)
	rows := []ReportRow{
		{CallID: "c-1", AnalysisID: "a-1", Timestamp: ts, Scenario: "PTP", Score: 0.5767, Verdict: "NEEDS_IMPROVEMENT"},
		{CallID: "c-2", Error: "llm extract failed"},
	}
	insight := aggregator.Insight{
		Total:          1,
		StatusCounts:   map[aggregator.Status]int{aggregator.NeedsImprovement: 1},
		ScenarioCounts: map[types.ScenarioType]int{types.ScenarioPTP: 1},
	}
	require.NoError(t, WriteReport(path, rows, insight))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"call_id", "analysis_id", "timestamp", "scenario", "score", "verdict", "error"}, got[0])
	require.GreaterOrEqual(t, len(got[1]), 6)
	assert.Equal(t, []string{"c-1", "a-1", "2025-12-01T08:30:00Z", "PTP", "0.5767", "NEEDS_IMPROVEMENT"}, got[1][:6])
	assert.Equal(t, "llm extract failed", got[2][6])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"total", "1"}, summary[0])
	assert.Contains(t, summary, []string{"status:NEEDS_IMPROVEMENT", "1"})
	assert.Contains(t, summary, []string{"scenario:PTP", "1"})
}
