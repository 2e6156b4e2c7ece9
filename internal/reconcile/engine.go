package reconcile

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/model"
)

// Store abstracts the persistence methods the reconciliation engine needs.
type Store interface {
	ListEntities(ctx context.Context) ([]model.CanonicalEntity, error)
	CreateEntity(ctx context.Context, e *model.CanonicalEntity) error
	UpdateEntity(ctx context.Context, e *model.CanonicalEntity) error
	GetFieldValue(ctx context.Context, entityID, field string) (*model.FieldValue, error)
	UpsertFieldValue(ctx context.Context, fv *model.FieldValue) error
	CreateConflict(ctx context.Context, cr *model.ConflictRecord) error
	LatestConflict(ctx context.Context, entityID, field string) (*model.ConflictRecord, error)
}

// Engine groups raw records into canonical entities and resolves per-field
// conflicts. Raw records are never mutated.
type Engine struct {
	store     Store
	table     *Table
	threshold float64
	now       func() time.Time // injectable for testing
}

// NewEngine creates a reconciliation engine. A nil table means every field
// resolves by retrieval recency.
func NewEngine(store Store, table *Table, threshold float64) *Engine {
	if table == nil {
		table = &Table{Fields: map[string]FieldAuthority{}}
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &Engine{
		store:     store,
		table:     table,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed clock for testing.
func (e *Engine) WithNow(t time.Time) *Engine {
	e.now = func() time.Time { return t }
	return e
}

// Result summarizes one reconciliation pass.
type Result struct {
	EntitiesCreated  int
	EntitiesMatched  int
	RecordsProcessed int
	FieldValues      []model.FieldValue
	Conflicts        []model.ConflictRecord
	Entities         []model.CanonicalEntity
	// PriorValues maps entity id -> field -> the value that was current
	// before this pass, for change-magnitude validation downstream.
	PriorValues map[string]map[string]string
	// Contributions maps entity id -> field -> the sources that reported a
	// value this run, for completeness validation downstream.
	Contributions map[string]map[string][]string
}

// Reconcile merges the run's raw records into canonical entities.
// Re-running on unchanged inputs emits no duplicate conflict records for
// fields whose resolution is unchanged.
func (e *Engine) Reconcile(ctx context.Context, records []model.RawSourceRecord) (*Result, error) {
	entities, err := e.store.ListEntities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: list entities")
	}

	result := &Result{
		RecordsProcessed: len(records),
		PriorValues:      make(map[string]map[string]string),
		Contributions:    make(map[string]map[string][]string),
	}

	// Group records by entity. Newly created entities join the candidate
	// set so later records in the same run can match them.
	grouped := make(map[string][]*model.RawSourceRecord)
	byID := make(map[string]*model.CanonicalEntity, len(entities))
	for i := range entities {
		byID[entities[i].ID] = &entities[i]
	}

	for i := range records {
		rec := &records[i]
		ent := e.bestMatch(entities, rec)
		if ent == nil {
			created := model.CanonicalEntity{
				ID:        uuid.New().String(),
				Name:      rec.Name,
				Position:  rec.Position,
				School:    rec.School,
				Status:    model.EntityStatusActive,
				CreatedAt: e.now(),
				UpdatedAt: e.now(),
			}
			if err := e.store.CreateEntity(ctx, &created); err != nil {
				return nil, eris.Wrapf(err, "reconcile: create entity for %s", rec.Name)
			}
			entities = append(entities, created)
			ent = &entities[len(entities)-1]
			byID[ent.ID] = ent
			result.EntitiesCreated++
			zap.L().Info("reconcile: new entity",
				zap.String("entity_id", ent.ID),
				zap.String("name", ent.Name),
				zap.String("position", ent.Position),
			)
		} else {
			result.EntitiesMatched++
		}
		grouped[ent.ID] = append(grouped[ent.ID], rec)
	}

	// Resolve fields per entity.
	for entityID, recs := range grouped {
		ent := byID[entityID]
		e.linkRecords(ent, recs)
		if err := e.store.UpdateEntity(ctx, ent); err != nil {
			return nil, eris.Wrapf(err, "reconcile: update entity %s", entityID)
		}
		result.Entities = append(result.Entities, *ent)

		if err := e.resolveFields(ctx, ent, recs, result); err != nil {
			return nil, err
		}
	}

	zap.L().Info("reconcile: pass complete",
		zap.Int("records", result.RecordsProcessed),
		zap.Int("entities_created", result.EntitiesCreated),
		zap.Int("entities_matched", result.EntitiesMatched),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return result, nil
}

// bestMatch finds the entity with the highest name similarity at or above
// the threshold. Position must match exactly; name alone is not identity.
func (e *Engine) bestMatch(entities []model.CanonicalEntity, rec *model.RawSourceRecord) *model.CanonicalEntity {
	var best *model.CanonicalEntity
	bestScore := 0.0
	for i := range entities {
		ent := &entities[i]
		if !strings.EqualFold(ent.Position, rec.Position) {
			continue
		}
		score := Similarity(ent.Name, rec.Name)
		if score >= e.threshold && score > bestScore {
			best = ent
			bestScore = score
		}
	}
	return best
}

func (e *Engine) linkRecords(ent *model.CanonicalEntity, recs []*model.RawSourceRecord) {
	seen := make(map[string]bool, len(ent.SourceRecordIDs))
	for _, id := range ent.SourceRecordIDs {
		seen[id] = true
	}
	for _, rec := range recs {
		if !seen[rec.ID] {
			ent.SourceRecordIDs = append(ent.SourceRecordIDs, rec.ID)
			seen[rec.ID] = true
		}
	}
	ent.UpdatedAt = e.now()
}

// resolveFields detects conflicts and writes resolved field values for one
// entity's contributing records.
func (e *Engine) resolveFields(ctx context.Context, ent *model.CanonicalEntity, recs []*model.RawSourceRecord, result *Result) error {
	candidates := collectCandidates(recs)

	fields := make([]string, 0, len(candidates))
	for f := range candidates {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		cands := candidates[field]

		if result.Contributions[ent.ID] == nil {
			result.Contributions[ent.ID] = make(map[string][]string)
		}
		for _, c := range cands {
			result.Contributions[ent.ID][field] = append(result.Contributions[ent.ID][field], c.Source)
		}

		winner, rule, conflicted := e.resolveField(field, cands)

		prior, err := e.store.GetFieldValue(ctx, ent.ID, field)
		if err != nil {
			return eris.Wrapf(err, "reconcile: get field value %s/%s", ent.ID, field)
		}

		// Idempotency guard: unchanged resolution writes nothing.
		if prior != nil && prior.Value == winner.Value && prior.Source == winner.Source && prior.Rule == rule {
			continue
		}
		if prior != nil {
			if result.PriorValues[ent.ID] == nil {
				result.PriorValues[ent.ID] = make(map[string]string)
			}
			result.PriorValues[ent.ID][field] = prior.Value
		}

		fv := model.FieldValue{
			EntityID:   ent.ID,
			Field:      field,
			Value:      winner.Value,
			Source:     winner.Source,
			Rule:       rule,
			Conflicted: conflicted,
			UpdatedAt:  e.now(),
		}
		if err := e.store.UpsertFieldValue(ctx, &fv); err != nil {
			return eris.Wrapf(err, "reconcile: upsert field value %s/%s", ent.ID, field)
		}
		result.FieldValues = append(result.FieldValues, fv)

		if conflicted {
			cr := model.ConflictRecord{
				ID:            uuid.New().String(),
				EntityID:      ent.ID,
				Field:         field,
				Candidates:    cands,
				WinningSource: winner.Source,
				Rule:          rule,
				CreatedAt:     e.now(),
			}
			if err := e.store.CreateConflict(ctx, &cr); err != nil {
				return eris.Wrapf(err, "reconcile: create conflict %s/%s", ent.ID, field)
			}
			result.Conflicts = append(result.Conflicts, cr)
		}
	}
	return nil
}

// resolveField picks the winner for one field's candidate set.
func (e *Engine) resolveField(field string, cands []model.Candidate) (model.Candidate, string, bool) {
	if len(cands) == 1 {
		return cands[0], RuleSingleSource, false
	}

	distinct := make(map[string]bool, len(cands))
	for _, c := range cands {
		distinct[c.Value] = true
	}
	if len(distinct) == 1 {
		return latest(cands), RuleUnanimous, false
	}

	winner, rule := e.table.Resolve(field, cands)
	return winner, rule, true
}

// collectCandidates builds the per-field candidate lists from the entity's
// contributing records, keeping the latest observation per source.
func collectCandidates(recs []*model.RawSourceRecord) map[string][]model.Candidate {
	latestBySource := make(map[string]map[string]model.Candidate) // field -> source -> candidate
	for _, rec := range recs {
		for field, value := range rec.Fields {
			if latestBySource[field] == nil {
				latestBySource[field] = make(map[string]model.Candidate)
			}
			existing, ok := latestBySource[field][rec.Source]
			if !ok || rec.RetrievedAt.After(existing.RetrievedAt) {
				latestBySource[field][rec.Source] = model.Candidate{
					Source:      rec.Source,
					Value:       value,
					RetrievedAt: rec.RetrievedAt,
				}
			}
		}
	}

	out := make(map[string][]model.Candidate, len(latestBySource))
	for field, bySource := range latestBySource {
		cands := make([]model.Candidate, 0, len(bySource))
		for _, c := range bySource {
			cands = append(cands, c)
		}
		sort.Slice(cands, func(i, j int) bool { return cands[i].Source < cands[j].Source })
		out[field] = cands
	}
	return out
}
