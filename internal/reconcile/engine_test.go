package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftiq/scoutsync/internal/model"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	entities  []model.CanonicalEntity
	fields    map[string]model.FieldValue // entityID/field
	conflicts []model.ConflictRecord
	upserts   int
}

func newMemStore() *memStore {
	return &memStore{fields: make(map[string]model.FieldValue)}
}

func fvKey(entityID, field string) string { return entityID + "/" + field }

func (m *memStore) ListEntities(context.Context) ([]model.CanonicalEntity, error) {
	out := make([]model.CanonicalEntity, len(m.entities))
	copy(out, m.entities)
	return out, nil
}

func (m *memStore) CreateEntity(_ context.Context, e *model.CanonicalEntity) error {
	m.entities = append(m.entities, *e)
	return nil
}

func (m *memStore) UpdateEntity(_ context.Context, e *model.CanonicalEntity) error {
	for i := range m.entities {
		if m.entities[i].ID == e.ID {
			m.entities[i] = *e
			return nil
		}
	}
	m.entities = append(m.entities, *e)
	return nil
}

func (m *memStore) GetFieldValue(_ context.Context, entityID, field string) (*model.FieldValue, error) {
	if fv, ok := m.fields[fvKey(entityID, field)]; ok {
		return &fv, nil
	}
	return nil, nil
}

func (m *memStore) UpsertFieldValue(_ context.Context, fv *model.FieldValue) error {
	m.upserts++
	m.fields[fvKey(fv.EntityID, fv.Field)] = *fv
	return nil
}

func (m *memStore) CreateConflict(_ context.Context, cr *model.ConflictRecord) error {
	m.conflicts = append(m.conflicts, *cr)
	return nil
}

func (m *memStore) LatestConflict(_ context.Context, entityID, field string) (*model.ConflictRecord, error) {
	for i := len(m.conflicts) - 1; i >= 0; i-- {
		if m.conflicts[i].EntityID == entityID && m.conflicts[i].Field == field {
			cr := m.conflicts[i]
			return &cr, nil
		}
	}
	return nil, nil
}

func record(source, name, position string, fields map[string]string, at time.Time) model.RawSourceRecord {
	return model.RawSourceRecord{
		ID:          source + ":" + name,
		Source:      source,
		Name:        name,
		Position:    position,
		School:      "State U",
		Fields:      fields,
		RetrievedAt: at,
	}
}

func TestReconcile_CreatesEntityForUnmatchedRecord(t *testing.T) {
	st := newMemStore()
	eng := NewEngine(st, nil, 0.85)

	at := time.Now().UTC()
	res, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("combine", "John Smith", "QB", map[string]string{"height": "74"}, at),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.EntitiesCreated)
	assert.Equal(t, 0, res.EntitiesMatched)
	require.Len(t, st.entities, 1)
	assert.Equal(t, "John Smith", st.entities[0].Name)
	assert.Equal(t, model.EntityStatusActive, st.entities[0].Status)
	assert.NotEmpty(t, st.entities[0].ID)
	assert.Contains(t, st.entities[0].SourceRecordIDs, "combine:John Smith")
}

func TestReconcile_MatchesFuzzyNameSamePosition(t *testing.T) {
	st := newMemStore()
	st.entities = append(st.entities, model.CanonicalEntity{
		ID: "e1", Name: "Marvin Harrison Jr.", Position: "WR", Status: model.EntityStatusActive,
	})
	eng := NewEngine(st, nil, 0.85)

	res, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("scout_notes", "Marvin Harrison", "WR", map[string]string{"weight": "205"}, time.Now()),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.EntitiesCreated)
	assert.Equal(t, 1, res.EntitiesMatched)
	assert.Len(t, st.entities, 1)
}

func TestReconcile_PositionMismatchCreatesNewEntity(t *testing.T) {
	st := newMemStore()
	st.entities = append(st.entities, model.CanonicalEntity{
		ID: "e1", Name: "John Smith", Position: "QB", Status: model.EntityStatusActive,
	})
	eng := NewEngine(st, nil, 0.85)

	// Same name, different position: not the same prospect.
	res, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("combine", "John Smith", "WR", map[string]string{"height": "72"}, time.Now()),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.EntitiesCreated)
	assert.Len(t, st.entities, 2)
}

func TestReconcile_SameRunRecordsMatchNewEntity(t *testing.T) {
	st := newMemStore()
	eng := NewEngine(st, nil, 0.85)

	at := time.Now().UTC()
	res, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("combine", "John Smith", "QB", map[string]string{"height": "74"}, at),
		record("scout_notes", "J. Smith", "QB", map[string]string{"height": "74"}, at.Add(time.Minute)),
	})
	require.NoError(t, err)

	// The second record matches the entity the first one created.
	assert.Equal(t, 1, res.EntitiesCreated)
	assert.Equal(t, 1, res.EntitiesMatched)
	assert.Len(t, st.entities, 1)
	assert.Len(t, st.entities[0].SourceRecordIDs, 2)
}

func TestReconcile_SingleSourceNoConflict(t *testing.T) {
	st := newMemStore()
	eng := NewEngine(st, nil, 0.85)

	_, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("combine", "John Smith", "QB", map[string]string{"height": "74"}, time.Now()),
	})
	require.NoError(t, err)

	fv, err := st.GetFieldValue(context.Background(), st.entities[0].ID, "height")
	require.NoError(t, err)
	require.NotNil(t, fv)
	assert.Equal(t, "74", fv.Value)
	assert.Equal(t, RuleSingleSource, fv.Rule)
	assert.False(t, fv.Conflicted)
	assert.Empty(t, st.conflicts)
}

func TestReconcile_UnanimousAgreementNoConflict(t *testing.T) {
	st := newMemStore()
	eng := NewEngine(st, nil, 0.85)

	at := time.Now().UTC()
	_, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("combine", "John Smith", "QB", map[string]string{"height": "74"}, at),
		record("scout_notes", "John Smith", "QB", map[string]string{"height": "74"}, at.Add(time.Minute)),
	})
	require.NoError(t, err)

	fv, _ := st.GetFieldValue(context.Background(), st.entities[0].ID, "height")
	require.NotNil(t, fv)
	assert.Equal(t, RuleUnanimous, fv.Rule)
	assert.False(t, fv.Conflicted)
	assert.Empty(t, st.conflicts)
}

func TestReconcile_DisagreementWritesConflict(t *testing.T) {
	st := newMemStore()
	table := &Table{Fields: map[string]FieldAuthority{
		"height": {Exclusive: "combine"},
	}}
	eng := NewEngine(st, table, 0.85)

	at := time.Now().UTC()
	_, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("combine", "John Smith", "QB", map[string]string{"height": "74"}, at),
		record("scout_notes", "John Smith", "QB", map[string]string{"height": "75"}, at.Add(time.Minute)),
	})
	require.NoError(t, err)

	fv, _ := st.GetFieldValue(context.Background(), st.entities[0].ID, "height")
	require.NotNil(t, fv)
	assert.Equal(t, "74", fv.Value)
	assert.Equal(t, "combine", fv.Source)
	assert.Equal(t, RuleExclusiveSource, fv.Rule)
	assert.True(t, fv.Conflicted)

	require.Len(t, st.conflicts, 1)
	cr := st.conflicts[0]
	assert.Equal(t, "height", cr.Field)
	assert.Equal(t, "combine", cr.WinningSource)
	assert.Len(t, cr.Candidates, 2)
}

func TestReconcile_Idempotent(t *testing.T) {
	st := newMemStore()
	eng := NewEngine(st, nil, 0.85)

	at := time.Now().UTC()
	recs := []model.RawSourceRecord{
		record("combine", "John Smith", "QB", map[string]string{"height": "74"}, at),
		record("scout_notes", "John Smith", "QB", map[string]string{"height": "75"}, at.Add(time.Minute)),
	}

	_, err := eng.Reconcile(context.Background(), recs)
	require.NoError(t, err)
	upsertsAfterFirst := st.upserts
	conflictsAfterFirst := len(st.conflicts)

	// Unchanged inputs resolve identically, so nothing new is written.
	res, err := eng.Reconcile(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, upsertsAfterFirst, st.upserts)
	assert.Equal(t, conflictsAfterFirst, len(st.conflicts))
	assert.Empty(t, res.FieldValues)
	assert.Empty(t, res.Conflicts)
}

func TestReconcile_PriorValuesAndContributions(t *testing.T) {
	st := newMemStore()
	eng := NewEngine(st, nil, 0.85)

	at := time.Now().UTC()
	_, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("combine", "John Smith", "QB", map[string]string{"weight": "220"}, at),
	})
	require.NoError(t, err)
	entityID := st.entities[0].ID

	res, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("combine", "John Smith", "QB", map[string]string{"weight": "224"}, at.Add(time.Hour)),
	})
	require.NoError(t, err)

	assert.Equal(t, "220", res.PriorValues[entityID]["weight"])
	assert.Equal(t, []string{"combine"}, res.Contributions[entityID]["weight"])
}

func TestReconcile_LatestObservationPerSourceWins(t *testing.T) {
	st := newMemStore()
	eng := NewEngine(st, nil, 0.85)

	at := time.Now().UTC()
	// Two observations from the same source; only the newer one counts.
	_, err := eng.Reconcile(context.Background(), []model.RawSourceRecord{
		record("combine", "John Smith", "QB", map[string]string{"weight": "218"}, at),
		record("combine", "John Smith", "QB", map[string]string{"weight": "221"}, at.Add(time.Hour)),
	})
	require.NoError(t, err)

	fv, _ := st.GetFieldValue(context.Background(), st.entities[0].ID, "weight")
	require.NotNil(t, fv)
	assert.Equal(t, "221", fv.Value)
	assert.Equal(t, RuleSingleSource, fv.Rule)
}
