package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/resilience"
)

// CSVCollector reads raw prospect records from a delimited file. The first
// row must be a header naming the identity columns.
type CSVCollector struct {
	source    string
	path      string
	delimiter rune
	now       func() time.Time
}

// NewCSVCollector creates a collector for one CSV-backed source.
func NewCSVCollector(source, path string) *CSVCollector {
	return &CSVCollector{
		source: source,
		path:   path,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithDelimiter overrides the default comma delimiter.
func (c *CSVCollector) WithDelimiter(d rune) *CSVCollector {
	c.delimiter = d
	return c
}

// WithNow sets a fixed retrieval timestamp for testing.
func (c *CSVCollector) WithNow(t time.Time) *CSVCollector {
	c.now = func() time.Time { return t }
	return c
}

// Source returns the source identifier this collector contributes as.
func (c *CSVCollector) Source() string {
	return c.source
}

// Collect parses the file into raw records. A missing file is transient
// (the drop may not have landed yet); a malformed file is permanent.
func (c *CSVCollector) Collect(ctx context.Context) ([]model.RawSourceRecord, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "source %s: open %s", c.source, c.path))
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if c.delimiter != 0 {
		reader.Comma = c.delimiter
	}
	reader.FieldsPerRecord = -1 // allow variable fields

	var header []string
	var rows [][]string
	first := true
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrapf(ctx.Err(), "source %s: context cancelled", c.source)
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, resilience.NewPermanentError(eris.Wrapf(err, "source %s: parse %s", c.source, c.path))
		}
		if first {
			header = row
			first = false
			continue
		}
		rows = append(rows, row)
	}

	if header == nil {
		return nil, resilience.NewPermanentError(eris.Errorf("source %s: empty file %s", c.source, c.path))
	}

	records, err := rowsToRecords(c.source, header, rows, c.now)
	if err != nil {
		return nil, resilience.NewPermanentError(err)
	}
	return records, nil
}
