package stages

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/orchestrator"
)

// Archiver persists a snapshot of publishable entities. The pipeline only
// consumes its result contract; where and how snapshots live is external.
type Archiver interface {
	Snapshot(ctx context.Context, entities []model.CanonicalEntity, fields map[string][]model.FieldValue) (string, error)
}

// EntitySource provides the current canonical state for archival.
type EntitySource interface {
	ListEntities(ctx context.Context) ([]model.CanonicalEntity, error)
	ListFieldValues(ctx context.Context, entityID string) ([]model.FieldValue, error)
}

// ArchiveStage snapshots every active entity. Quarantined entities are
// excluded from publication until their critical violations are reviewed.
type ArchiveStage struct {
	store    EntitySource
	archiver Archiver
}

// NewArchiveStage creates the archive stage.
func NewArchiveStage(store EntitySource, archiver Archiver) *ArchiveStage {
	return &ArchiveStage{store: store, archiver: archiver}
}

// Name implements orchestrator.Stage.
func (s *ArchiveStage) Name() string { return "archive" }

// Execute snapshots the publishable canonical state.
func (s *ArchiveStage) Execute(ctx context.Context, _ *orchestrator.StageInput) (*orchestrator.StageResult, error) {
	entities, err := s.store.ListEntities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "archive stage: list entities")
	}

	publishable := make([]model.CanonicalEntity, 0, len(entities))
	fields := make(map[string][]model.FieldValue)
	for _, ent := range entities {
		if ent.Status != model.EntityStatusActive {
			continue
		}
		fvs, err := s.store.ListFieldValues(ctx, ent.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "archive stage: list fields for %s", ent.ID)
		}
		publishable = append(publishable, ent)
		fields[ent.ID] = fvs
	}

	ref, err := s.archiver.Snapshot(ctx, publishable, fields)
	if err != nil {
		return nil, eris.Wrap(err, "archive stage: snapshot")
	}

	zap.L().Info("archive: snapshot written",
		zap.String("ref", ref),
		zap.Int("entities", len(publishable)),
		zap.Int("quarantined_excluded", len(entities)-len(publishable)),
	)

	return &orchestrator.StageResult{
		RecordsProcessed: len(publishable),
		Output:           ref,
	}, nil
}
