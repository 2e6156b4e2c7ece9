package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftiq/scoutsync/internal/resilience"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drop.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVCollector_Collect(t *testing.T) {
	path := writeCSV(t, "Name,Position,School,Height,Weight\nJohn Smith,QB,State U,74,220\nDave Jones,WR,Tech U,71,\n")

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := NewCSVCollector("scout_notes", path).WithNow(at)
	assert.Equal(t, "scout_notes", c.Source())

	recs, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	r := recs[0]
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "scout_notes", r.Source)
	assert.Equal(t, "John Smith", r.Name)
	assert.Equal(t, "QB", r.Position)
	assert.Equal(t, "State U", r.School)
	assert.Equal(t, at, r.RetrievedAt)
	assert.Equal(t, map[string]string{"height": "74", "weight": "220"}, r.Fields)

	// Empty cells produce no raw field.
	assert.Equal(t, map[string]string{"height": "71"}, recs[1].Fields)
}

func TestCSVCollector_CustomDelimiter(t *testing.T) {
	path := writeCSV(t, "name|position|forty\nJohn Smith|QB|4.61\n")

	recs, err := NewCSVCollector("recruiting_api", path).WithDelimiter('|').Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "4.61", recs[0].Fields["forty"])
}

func TestCSVCollector_SkipsRowsWithoutName(t *testing.T) {
	path := writeCSV(t, "name,position\n,QB\nJohn Smith,QB\n")

	recs, err := NewCSVCollector("s", path).Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCSVCollector_MissingFileIsTransient(t *testing.T) {
	c := NewCSVCollector("s", filepath.Join(t.TempDir(), "absent.csv"))
	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestCSVCollector_MissingIdentityColumnIsPermanent(t *testing.T) {
	path := writeCSV(t, "name,school\nJohn Smith,State U\n")

	_, err := NewCSVCollector("s", path).Collect(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
	assert.Contains(t, err.Error(), "position")
}

func TestCSVCollector_EmptyFileIsPermanent(t *testing.T) {
	path := writeCSV(t, "")

	_, err := NewCSVCollector("s", path).Collect(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
}

func TestCSVCollector_CancelledContext(t *testing.T) {
	path := writeCSV(t, "name,position\nJohn Smith,QB\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVCollector("s", path).Collect(ctx)
	require.Error(t, err)
}
