package stages

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/orchestrator"
	"github.com/draftiq/scoutsync/internal/reconcile"
	"github.com/draftiq/scoutsync/internal/resilience"
)

// ReconcileStage merges the collect stage's raw records into canonical
// entities.
type ReconcileStage struct {
	engine *reconcile.Engine
}

// NewReconcileStage creates the reconcile stage.
func NewReconcileStage(engine *reconcile.Engine) *ReconcileStage {
	return &ReconcileStage{engine: engine}
}

// Name implements orchestrator.Stage.
func (s *ReconcileStage) Name() string { return "reconcile" }

// Execute runs one reconciliation pass over the upstream records.
func (s *ReconcileStage) Execute(ctx context.Context, in *orchestrator.StageInput) (*orchestrator.StageResult, error) {
	records, ok := in.Payload.([]model.RawSourceRecord)
	if !ok {
		return nil, resilience.NewPermanentError(
			eris.Errorf("reconcile stage: expected raw records, got %T", in.Payload))
	}

	result, err := s.engine.Reconcile(ctx, records)
	if err != nil {
		return nil, err
	}

	return &orchestrator.StageResult{
		RecordsProcessed: result.RecordsProcessed,
		Output:           result,
	}, nil
}
