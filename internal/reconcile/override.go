package reconcile

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/model"
)

// Override forces a field to the value contributed by the named source,
// superseding the automatic resolution. The override is recorded as its own
// conflict record with rule manual_override, preserving the lineage trail.
func (e *Engine) Override(ctx context.Context, entityID, field, source string) (*model.FieldValue, error) {
	cr, err := e.store.LatestConflict(ctx, entityID, field)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: latest conflict %s/%s", entityID, field)
	}

	var candidates []model.Candidate
	if cr != nil {
		candidates = cr.Candidates
	} else {
		// No conflict history: the sole candidate is the current value.
		fv, err := e.store.GetFieldValue(ctx, entityID, field)
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile: get field value %s/%s", entityID, field)
		}
		if fv == nil {
			return nil, eris.Errorf("reconcile: no value recorded for %s/%s", entityID, field)
		}
		candidates = []model.Candidate{{Source: fv.Source, Value: fv.Value, RetrievedAt: fv.UpdatedAt}}
	}

	var winner *model.Candidate
	for i := range candidates {
		if candidates[i].Source == source {
			winner = &candidates[i]
			break
		}
	}
	if winner == nil {
		return nil, eris.Errorf("reconcile: source %s has no candidate for %s/%s", source, entityID, field)
	}

	fv := model.FieldValue{
		EntityID:   entityID,
		Field:      field,
		Value:      winner.Value,
		Source:     winner.Source,
		Rule:       RuleManualOverride,
		Conflicted: true,
		UpdatedAt:  e.now(),
	}
	if err := e.store.UpsertFieldValue(ctx, &fv); err != nil {
		return nil, eris.Wrapf(err, "reconcile: upsert override %s/%s", entityID, field)
	}

	record := model.ConflictRecord{
		ID:            uuid.New().String(),
		EntityID:      entityID,
		Field:         field,
		Candidates:    candidates,
		WinningSource: source,
		Rule:          RuleManualOverride,
		CreatedAt:     e.now(),
	}
	if err := e.store.CreateConflict(ctx, &record); err != nil {
		return nil, eris.Wrapf(err, "reconcile: record override %s/%s", entityID, field)
	}

	zap.L().Info("reconcile: manual override",
		zap.String("entity_id", entityID),
		zap.String("field", field),
		zap.String("source", source),
	)
	return &fv, nil
}
