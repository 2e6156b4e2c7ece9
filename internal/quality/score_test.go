package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_Weights(t *testing.T) {
	assert.InDelta(t, 100.0, Score(100, 100, 0), 1e-9)
	assert.InDelta(t, 0.0, Score(0, 0, 100), 1e-9)
	// 0.4*50 + 0.4*80 + 0.2*(100-10)
	assert.InDelta(t, 70.0, Score(50, 80, 10), 1e-9)
}

func TestScore_Monotonic(t *testing.T) {
	base := Score(50, 50, 50)
	assert.Greater(t, Score(60, 50, 50), base)
	assert.Greater(t, Score(50, 60, 50), base)
	assert.Less(t, Score(50, 50, 60), base)
}

func TestScopeStats_Percentages(t *testing.T) {
	s := ScopeStats{
		Scope:            "QB",
		EntitiesWithData: 8,
		EntitiesTotal:    10,
		RecordsValid:     45,
		RecordsTotal:     50,
		Outliers:         5,
	}
	assert.InDelta(t, 80.0, s.CoveragePct(), 1e-9)
	assert.InDelta(t, 90.0, s.ValidationPct(), 1e-9)
	assert.InDelta(t, 10.0, s.OutlierPct(), 1e-9)
	assert.InDelta(t, 0.4*80+0.4*90+0.2*90, ScoreFor(s), 1e-9)
}

func TestScopeStats_EmptyScope(t *testing.T) {
	var s ScopeStats
	assert.Zero(t, s.CoveragePct())
	assert.Zero(t, s.ValidationPct())
	assert.Zero(t, s.OutlierPct())
}
