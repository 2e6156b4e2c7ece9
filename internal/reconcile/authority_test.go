package reconcile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftiq/scoutsync/internal/model"
)

func writeAuthorityYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authority.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTable(t *testing.T) {
	path := writeAuthorityYAML(t, `
authority:
  fields:
    forty_yard_dash:
      exclusive: combine
    height:
      ranking: [combine, scout_notes, recruiting_api]
`)

	table, err := LoadTable(path)
	require.NoError(t, err)

	assert.Equal(t, "combine", table.Fields["forty_yard_dash"].Exclusive)
	assert.Equal(t, []string{"combine", "scout_notes", "recruiting_api"}, table.Fields["height"].Ranking)
}

func TestLoadTable_RejectsExclusiveAndRanking(t *testing.T) {
	path := writeAuthorityYAML(t, `
authority:
  fields:
    weight:
      exclusive: combine
      ranking: [combine, scout_notes]
`)

	_, err := LoadTable(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight")
}

func TestLoadTable_MissingFileYieldsEmptyTable(t *testing.T) {
	table, err := LoadTable(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, table.Fields)
}

func TestLoadTable_EmptyDocument(t *testing.T) {
	table, err := LoadTable(writeAuthorityYAML(t, "authority: {}\n"))
	require.NoError(t, err)
	assert.NotNil(t, table.Fields)
}

func candidatesAt(base time.Time) []model.Candidate {
	return []model.Candidate{
		{Source: "recruiting_api", Value: "4.42", RetrievedAt: base},
		{Source: "combine", Value: "4.38", RetrievedAt: base.Add(-time.Hour)},
		{Source: "scout_notes", Value: "4.40", RetrievedAt: base.Add(time.Hour)},
	}
}

func TestResolve_ExclusiveSource(t *testing.T) {
	table := &Table{Fields: map[string]FieldAuthority{
		"forty_yard_dash": {Exclusive: "combine"},
	}}

	winner, rule := table.Resolve("forty_yard_dash", candidatesAt(time.Now()))
	assert.Equal(t, "combine", winner.Source)
	assert.Equal(t, RuleExclusiveSource, rule)
}

func TestResolve_ExclusiveAbsentFallsBackToRecency(t *testing.T) {
	table := &Table{Fields: map[string]FieldAuthority{
		"forty_yard_dash": {Exclusive: "pro_day"},
	}}

	winner, rule := table.Resolve("forty_yard_dash", candidatesAt(time.Now()))
	assert.Equal(t, "scout_notes", winner.Source)
	assert.Equal(t, RuleLatestRetrieval, rule)
}

func TestResolve_RankingOrder(t *testing.T) {
	table := &Table{Fields: map[string]FieldAuthority{
		"height": {Ranking: []string{"pro_day", "combine", "scout_notes"}},
	}}

	// pro_day did not report, so the next ranked source wins.
	winner, rule := table.Resolve("height", candidatesAt(time.Now()))
	assert.Equal(t, "combine", winner.Source)
	assert.Equal(t, RuleSourceRank, rule)
}

func TestResolve_NoEntryUsesLatestRetrieval(t *testing.T) {
	table := &Table{Fields: map[string]FieldAuthority{}}

	winner, rule := table.Resolve("bench_press", candidatesAt(time.Now()))
	assert.Equal(t, "scout_notes", winner.Source)
	assert.Equal(t, RuleLatestRetrieval, rule)
}

func TestLatest_TieBreaksOnSourceName(t *testing.T) {
	at := time.Now()
	cands := []model.Candidate{
		{Source: "zeta", Value: "1", RetrievedAt: at},
		{Source: "alpha", Value: "2", RetrievedAt: at},
	}

	winner, rule := (&Table{Fields: map[string]FieldAuthority{}}).Resolve("x", cands)
	assert.Equal(t, "alpha", winner.Source)
	assert.Equal(t, RuleLatestRetrieval, rule)
}
