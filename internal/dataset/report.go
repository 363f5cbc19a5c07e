package dataset

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"collection-qa-go/internal/aggregator"
	"collection-qa-go/internal/types"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

// ReportRow is one line of a batch report. Error is set when the call could
// not be analysed; the score columns are then left blank.
type ReportRow struct {
	CallID     string
	AnalysisID string
	Timestamp  time.Time
	Scenario   string
	Score      float64
	Verdict    string
	Error      string
}

var resultsHeader = []any{"call_id", "analysis_id", "timestamp", "scenario", "score", "verdict", "error"}

// WriteReport writes a Results sheet with one row per call and a Summary
// sheet built from insight.
func WriteReport(path string, rows []ReportRow, insight aggregator.Insight) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &resultsHeader); err != nil {
		return err
	}
	for i, r := range rows {
		line := []any{r.CallID, r.AnalysisID, "", "", "", "", r.Error}
		if r.Error == "" {
			line = []any{r.CallID, r.AnalysisID, r.Timestamp.UTC().Format(time.RFC3339), r.Scenario, r.Score, r.Verdict, ""}
		}
		if err := f.SetSheetRow(resultsSheet, fmt.Sprintf("A%d", i+2), &line); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	summary := [][]any{
		{"total", insight.Total},
		{"pass_rate", insight.PassRate},
		{"knockout_rate", insight.KnockoutRate},
	}
	for _, s := range sortedKeys(insight.StatusCounts) {
		summary = append(summary, []any{"status:" + s, insight.StatusCounts[aggregator.Status(s)]})
	}
	for _, s := range sortedKeys(insight.ScenarioCounts) {
		summary = append(summary, []any{"scenario:" + s, insight.ScenarioCounts[types.ScenarioType(s)]})
	}
	for _, s := range sortedKeys(insight.AverageByScenario) {
		summary = append(summary, []any{"average:" + s, insight.AverageByScenario[types.ScenarioType(s)]})
	}
	for i, line := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &line); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func sortedKeys[K ~string, V any](m map[K]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
