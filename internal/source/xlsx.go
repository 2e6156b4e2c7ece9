package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/resilience"
)

// XLSXCollector reads raw prospect records from a spreadsheet. The first
// row of the selected sheet must be a header naming the identity columns.
type XLSXCollector struct {
	source    string
	path      string
	sheetName string // empty means the first sheet
	now       func() time.Time
}

// NewXLSXCollector creates a collector for one spreadsheet-backed source.
func NewXLSXCollector(source, path, sheetName string) *XLSXCollector {
	return &XLSXCollector{
		source:    source,
		path:      path,
		sheetName: sheetName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed retrieval timestamp for testing.
func (c *XLSXCollector) WithNow(t time.Time) *XLSXCollector {
	c.now = func() time.Time { return t }
	return c
}

// Source returns the source identifier this collector contributes as.
func (c *XLSXCollector) Source() string {
	return c.source
}

// Collect parses the spreadsheet into raw records.
func (c *XLSXCollector) Collect(ctx context.Context) ([]model.RawSourceRecord, error) {
	if ctx.Err() != nil {
		return nil, eris.Wrapf(ctx.Err(), "source %s: context cancelled", c.source)
	}

	f, err := xlsx.OpenFile(c.path)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "source %s: open %s", c.source, c.path))
	}

	sheet, err := c.sheet(f)
	if err != nil {
		return nil, resilience.NewPermanentError(err)
	}

	var header []string
	var rows [][]string
	for i, row := range sheet.Rows {
		cells := rowToStrings(row)
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}
	if header == nil {
		return nil, resilience.NewPermanentError(eris.Errorf("source %s: empty sheet in %s", c.source, c.path))
	}

	records, err := rowsToRecords(c.source, header, rows, c.now)
	if err != nil {
		return nil, resilience.NewPermanentError(err)
	}
	return records, nil
}

func (c *XLSXCollector) sheet(f *xlsx.File) (*xlsx.Sheet, error) {
	if c.sheetName != "" {
		sheet, ok := f.Sheet[c.sheetName]
		if !ok {
			return nil, eris.Errorf("source %s: sheet %q not found in %s", c.source, c.sheetName, c.path)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("source %s: no sheets in %s", c.source, c.path)
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
