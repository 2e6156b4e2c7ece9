package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/orchestrator"
	"github.com/draftiq/scoutsync/internal/quality"
	"github.com/draftiq/scoutsync/internal/reconcile"
	"github.com/draftiq/scoutsync/internal/resilience"
)

// FieldLister provides the full resolved field set per entity, which the
// quality engine needs for consistency checks across fields not touched
// this run.
type FieldLister interface {
	ListFieldValues(ctx context.Context, entityID string) ([]model.FieldValue, error)
}

// QualityStage validates the reconciled entities. Violations are findings,
// not failures: the stage reports success unless its own invocation breaks.
type QualityStage struct {
	engine *quality.Engine
	cache  *quality.Cache
	fields FieldLister
}

// NewQualityStage creates the quality stage.
func NewQualityStage(engine *quality.Engine, cache *quality.Cache, fields FieldLister) *QualityStage {
	return &QualityStage{engine: engine, cache: cache, fields: fields}
}

// Name implements orchestrator.Stage.
func (s *QualityStage) Name() string { return "quality" }

// QualityOutput summarizes a validation pass for downstream consumers.
type QualityOutput struct {
	EntitiesChecked int
	Violations      []model.Violation
}

// Execute refreshes the rule cache once for the run, then evaluates every
// entity touched by reconciliation. An invalid rule definition is a
// permanent failure: retrying won't fix configuration.
func (s *QualityStage) Execute(ctx context.Context, in *orchestrator.StageInput) (*orchestrator.StageResult, error) {
	recResult, ok := in.Payload.(*reconcile.Result)
	if !ok {
		return nil, resilience.NewPermanentError(
			eris.Errorf("quality stage: expected reconcile result, got %T", in.Payload))
	}

	if err := s.cache.Refresh(ctx); err != nil {
		var cfgErr *quality.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, resilience.NewPermanentError(err)
		}
		return nil, err
	}

	out := &QualityOutput{}
	var stageErrs []string

	for _, ent := range recResult.Entities {
		fields, err := s.fields.ListFieldValues(ctx, ent.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "quality stage: list fields for %s", ent.ID)
		}

		violations, err := s.engine.Evaluate(ctx, quality.EvalInput{
			Entity:        ent,
			Fields:        fields,
			Prior:         recResult.PriorValues[ent.ID],
			Contributions: recResult.Contributions[ent.ID],
		})
		if err != nil {
			return nil, err
		}
		out.EntitiesChecked++
		out.Violations = append(out.Violations, violations...)
	}

	if n := len(out.Violations); n > 0 {
		stageErrs = append(stageErrs, fmt.Sprintf("%d violations recorded", n))
	}

	return &orchestrator.StageResult{
		RecordsProcessed: out.EntitiesChecked,
		Errors:           stageErrs,
		Output:           out,
	}, nil
}
