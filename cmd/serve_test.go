package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/store"
)

// fakeStore stubs the read surface the serve helpers use.
type fakeStore struct {
	store.Store

	entities   []model.CanonicalEntity
	fields     map[string][]model.FieldValue
	violations []model.Violation
	rules      []model.QualityRule
}

func (f *fakeStore) ListEntities(context.Context) ([]model.CanonicalEntity, error) {
	return f.entities, nil
}

func (f *fakeStore) ListFieldValues(_ context.Context, entityID string) ([]model.FieldValue, error) {
	return f.fields[entityID], nil
}

func (f *fakeStore) ListViolations(_ context.Context, filter store.ViolationFilter) ([]model.Violation, error) {
	var out []model.Violation
	for _, v := range f.violations {
		if filter.EntityID != "" && v.EntityID != filter.EntityID {
			continue
		}
		if filter.Review != "" && v.Review != filter.Review {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) ListRules(context.Context) ([]model.QualityRule, error) {
	return f.rules, nil
}

func dashboardStore() *fakeStore {
	return &fakeStore{
		entities: []model.CanonicalEntity{
			{ID: "e1", Name: "John Smith", Position: "QB", Status: model.EntityStatusActive},
			{ID: "e2", Name: "Alan Page", Position: "QB", Status: model.EntityStatusActive},
			{ID: "e3", Name: "Marvin Harrison", Position: "WR", Status: model.EntityStatusActive},
		},
		fields: map[string][]model.FieldValue{
			"e1": {
				{EntityID: "e1", Field: "height", Value: "74", Source: "combine"},
				{EntityID: "e1", Field: "forty_yard_dash", Value: "4.40", Source: "combine"},
			},
			"e3": {
				{EntityID: "e3", Field: "height", Value: "70", Source: "scout_notes"},
			},
		},
		violations: []model.Violation{
			{
				ID: "v1", EntityID: "e1", RuleID: "r-out", Field: "forty_yard_dash",
				Severity: model.SeverityWarning, Review: model.ReviewPending,
			},
		},
		rules: []model.QualityRule{
			{ID: "r-out", Field: "forty_yard_dash", Type: model.RuleTypeOutlier},
			{ID: "r-range", Field: "height", Type: model.RuleTypeRange},
		},
	}
}

func TestQualitySummary(t *testing.T) {
	summaries, err := qualitySummary(context.Background(), dashboardStore())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	qb := summaries[0]
	assert.Equal(t, "QB", qb.Scope)
	assert.Equal(t, 2, qb.EntitiesTotal)
	assert.Equal(t, 1, qb.EntitiesWithData)
	assert.Equal(t, 2, qb.RecordsTotal)
	// The open violation marks forty_yard_dash invalid and, being tied to
	// an outlier rule, counts as an outlier.
	assert.Equal(t, 1, qb.RecordsValid)
	assert.Equal(t, 1, qb.Outliers)
	assert.InDelta(t, 50.0, qb.CoveragePct, 1e-9)
	assert.InDelta(t, 50.0, qb.ValidationPct, 1e-9)
	assert.InDelta(t, 50.0, qb.OutlierPct, 1e-9)
	assert.InDelta(t, 50.0, qb.Score, 1e-9)

	wr := summaries[1]
	assert.Equal(t, "WR", wr.Scope)
	assert.Equal(t, 1, wr.EntitiesWithData)
	assert.InDelta(t, 100.0, wr.CoveragePct, 1e-9)
	assert.InDelta(t, 100.0, wr.ValidationPct, 1e-9)
	assert.Zero(t, wr.OutlierPct)
	assert.InDelta(t, 100.0, wr.Score, 1e-9)
}

func TestQualitySummary_EmptyStore(t *testing.T) {
	summaries, err := qualitySummary(context.Background(), &fakeStore{fields: map[string][]model.FieldValue{}})
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
