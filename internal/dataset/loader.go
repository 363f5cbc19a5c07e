// Package dataset reads call batches from spreadsheets and writes the
// scored results back out.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"collection-qa-go/internal/types"
)

type columns struct {
	id, audio, transcript int
}

// detectColumns maps header cells by name. Unmatched columns stay -1.
func detectColumns(header []string) columns {
	c := columns{id: -1, audio: -1, transcript: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "transcript") || l == "text":
			if c.transcript == -1 {
				c.transcript = i
			}
		case strings.Contains(l, "audio") || strings.Contains(l, "record") || strings.Contains(l, "url") ||
			strings.Contains(l, "call") && strings.Contains(l, "link"):
			if c.audio == -1 {
				c.audio = i
			}
		case strings.Contains(l, "id"):
			if c.id == -1 {
				c.id = i
			}
		}
	}
	return c
}

// Load reads the first sheet of an xlsx file. Rows carrying neither a
// transcript nor an http(s) recording link are skipped. Rows without an id
// column get their sheet row number.
func Load(path string) ([]types.CallRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}
	cols := detectColumns(rows[0])
	if cols.audio == -1 && cols.transcript == -1 {
		return nil, fmt.Errorf("no transcript or audio column in header %v", rows[0])
	}

	var out []types.CallRecord
	for i, r := range rows[1:] {
		rec := types.CallRecord{
			CallID:     cell(r, cols.id),
			AudioURL:   cell(r, cols.audio),
			Transcript: cell(r, cols.transcript),
		}
		if rec.CallID == "" {
			rec.CallID = strconv.Itoa(i + 2)
		}
		if !isHTTP(rec.AudioURL) {
			rec.AudioURL = ""
		}
		if rec.Empty() {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

func isHTTP(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
