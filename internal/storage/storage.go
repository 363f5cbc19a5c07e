// Package storage persists analyses in SQLite. Records are append-only and
// keyed by a random UUID.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"collection-qa-go/internal/types"
)

var ErrNotFound = errors.New("analysis not found")

// fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id                  TEXT PRIMARY KEY,
	timestamp           TEXT NOT NULL,
	transcript_text     TEXT NOT NULL,
	scenario_type       TEXT NOT NULL,
	qa_score            REAL NOT NULL,
	classification_data TEXT NOT NULL,
	qa_data             TEXT NOT NULL,
	metadata            TEXT
);
CREATE INDEX IF NOT EXISTS idx_analyses_timestamp ON analyses(timestamp);
CREATE INDEX IF NOT EXISTS idx_analyses_scenario ON analyses(scenario_type);

CREATE TABLE IF NOT EXISTS critical_issues (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id TEXT NOT NULL,
	issue_type  TEXT NOT NULL,
	description TEXT NOT NULL,
	evidence    TEXT,
	FOREIGN KEY (analysis_id) REFERENCES analyses (id)
);
CREATE INDEX IF NOT EXISTS idx_issues_analysis ON critical_issues(analysis_id);
`

// Record is one stored analysis.
type Record struct {
	ID             string             `json:"id"`
	Timestamp      time.Time          `json:"timestamp"`
	Transcript     string             `json:"transcript_text"`
	ScenarioType   types.ScenarioType `json:"scenario_type"`
	QAScore        float64            `json:"qa_score"`
	Classification types.CallData     `json:"classification_data"`
	QA             types.QAScore      `json:"qa_data"`
	Metadata       map[string]any     `json:"metadata"`
}

// Summary is the list view of a record.
type Summary struct {
	ID           string             `json:"id"`
	Timestamp    time.Time          `json:"timestamp"`
	ScenarioType types.ScenarioType `json:"scenario_type"`
	QAScore      float64            `json:"qa_score"`
}

type Statistics struct {
	TotalCount           int                        `json:"total_count"`
	AverageScore         float64                    `json:"average_score"`
	PassingRate          float64                    `json:"passing_rate"`
	ScenarioDistribution map[types.ScenarioType]int `json:"scenario_distribution"`
}

type Issue struct {
	ID          int64  `json:"id"`
	AnalysisID  string `json:"analysis_id"`
	IssueType   string `json:"issue_type"`
	Description string `json:"description"`
	Evidence    string `json:"evidence,omitempty"`
}

type Store struct {
	db            *sql.DB
	passThreshold float64
	now           func() time.Time
	newID         func() string
}

// Open creates the database file and its directory if needed. passThreshold
// decides what Statistics counts as passing.
func Open(path string, passThreshold float64) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{
		db:            db,
		passThreshold: passThreshold,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save writes the analysis and its critical issues in one transaction and
// returns the new id.
func (s *Store) Save(ctx context.Context, transcript string, cd types.CallData, qa types.QAScore, metadata map[string]any) (string, error) {
	classification, err := json.Marshal(cd)
	if err != nil {
		return "", fmt.Errorf("encode classification: %w", err)
	}
	qaData, err := json.Marshal(qa)
	if err != nil {
		return "", fmt.Errorf("encode qa: %w", err)
	}
	var meta sql.NullString
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	id := s.newID()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (id, timestamp, transcript_text, scenario_type, qa_score, classification_data, qa_data, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.now().UTC().Format(timeLayout), transcript, string(cd.Scenario()), qa.TotalScore,
		string(classification), string(qaData), meta,
	)
	if err != nil {
		return "", fmt.Errorf("insert analysis: %w", err)
	}
	for _, v := range qa.Knockout.OtherViolations {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO critical_issues (analysis_id, issue_type, description, evidence) VALUES (?, ?, ?, NULL)`,
			id, "violation", v,
		)
		if err != nil {
			return "", fmt.Errorf("insert critical issue: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var (
		rec                   Record
		ts, scenario          string
		classification, qaRaw string
		meta                  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, transcript_text, scenario_type, qa_score, classification_data, qa_data, metadata
		 FROM analyses WHERE id = ?`, id,
	).Scan(&rec.ID, &ts, &rec.Transcript, &scenario, &rec.QAScore, &classification, &qaRaw, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if rec.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
		return Record{}, fmt.Errorf("parse timestamp of %s: %w", id, err)
	}
	rec.ScenarioType = types.ScenarioType(scenario)
	if rec.Classification, err = types.DecodeCallData([]byte(classification)); err != nil {
		return Record{}, fmt.Errorf("decode classification of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(qaRaw), &rec.QA); err != nil {
		return Record{}, fmt.Errorf("decode qa of %s: %w", id, err)
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
			return Record{}, fmt.Errorf("decode metadata of %s: %w", id, err)
		}
	}
	return rec, nil
}

// ListRecent returns at most limit summaries, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, scenario_type, qa_score FROM analyses
		 ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum          Summary
			ts, scenario string
		)
		if err := rows.Scan(&sum.ID, &ts, &scenario, &sum.QAScore); err != nil {
			return nil, err
		}
		if sum.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp of %s: %w", sum.ID, err)
		}
		sum.ScenarioType = types.ScenarioType(scenario)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	st := Statistics{ScenarioDistribution: map[types.ScenarioType]int{}}
	var (
		avg     sql.NullFloat64
		passing int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(qa_score), COUNT(CASE WHEN qa_score >= ? THEN 1 END) FROM analyses`,
		s.passThreshold,
	).Scan(&st.TotalCount, &avg, &passing)
	if err != nil {
		return Statistics{}, err
	}
	st.AverageScore = avg.Float64
	if st.TotalCount > 0 {
		st.PassingRate = float64(passing) / float64(st.TotalCount)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT scenario_type, COUNT(*) FROM analyses GROUP BY scenario_type`)
	if err != nil {
		return Statistics{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			scenario string
			n        int
		)
		if err := rows.Scan(&scenario, &n); err != nil {
			return Statistics{}, err
		}
		st.ScenarioDistribution[types.ScenarioType(scenario)] = n
	}
	return st, rows.Err()
}

func (s *Store) CriticalIssues(ctx context.Context, analysisID string) ([]Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, analysis_id, issue_type, description, evidence FROM critical_issues
		 WHERE analysis_id = ? ORDER BY id`, analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Issue{}
	for rows.Next() {
		var (
			is       Issue
			evidence sql.NullString
		)
		if err := rows.Scan(&is.ID, &is.AnalysisID, &is.IssueType, &is.Description, &evidence); err != nil {
			return nil, err
		}
		is.Evidence = evidence.String
		out = append(out, is)
	}
	return out, rows.Err()
}

// Export writes the full record as indented UTF-8 JSON. Non-ASCII text and
// HTML characters are written as-is.
func (s *Store) Export(ctx context.Context, id string, w io.Writer) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(rec)
}
