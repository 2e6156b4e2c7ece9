// Package source provides the collector contract and the file-based
// collectors that produce raw per-source records for a pipeline run.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/draftiq/scoutsync/internal/model"
)

// Collector produces the raw records one source contributes to a run.
// Implementations must surface transient failures via
// resilience.TransientError and permanent ones via resilience.PermanentError
// so the orchestrator's retry policy behaves correctly.
type Collector interface {
	Source() string
	Collect(ctx context.Context) ([]model.RawSourceRecord, error)
}

// identity column headers recognized in tabular source files.
const (
	colName     = "name"
	colPosition = "position"
	colSchool   = "school"
)

// rowsToRecords converts tabular rows into raw records. The header row maps
// the identity columns; every remaining column becomes a raw field keyed by
// its lowercased header.
func rowsToRecords(source string, header []string, rows [][]string, retrievedAt func() time.Time) ([]model.RawSourceRecord, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameIdx, ok := idx[colName]
	if !ok {
		return nil, eris.Errorf("source %s: missing %q column", source, colName)
	}
	posIdx, ok := idx[colPosition]
	if !ok {
		return nil, eris.Errorf("source %s: missing %q column", source, colPosition)
	}
	schoolIdx := -1
	if i, ok := idx[colSchool]; ok {
		schoolIdx = i
	}

	records := make([]model.RawSourceRecord, 0, len(rows))
	for _, row := range rows {
		name := cell(row, nameIdx)
		if name == "" {
			continue
		}
		rec := model.RawSourceRecord{
			ID:          uuid.New().String(),
			Source:      source,
			Name:        name,
			Position:    cell(row, posIdx),
			School:      cell(row, schoolIdx),
			Fields:      make(map[string]string),
			RetrievedAt: retrievedAt(),
		}
		for col, i := range idx {
			if col == colName || col == colPosition || col == colSchool {
				continue
			}
			if v := cell(row, i); v != "" {
				rec.Fields[col] = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
