// Package store provides persistence for canonical entities, resolved
// field values, conflict lineage, quality rules, violations, and pipeline
// execution history. Two backends are supported: SQLite for local runs and
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/draftiq/scoutsync/internal/model"
)

// ViolationFilter specifies criteria for listing violations.
type ViolationFilter struct {
	EntityID string             `json:"entity_id,omitempty"`
	Severity model.Severity     `json:"severity,omitempty"`
	Review   model.ReviewStatus `json:"review,omitempty"`
	Limit    int                `json:"limit,omitempty"`
}

// Store defines the persistence interface for the evaluation pipeline.
// Get-style methods return (nil, nil) when the row does not exist.
type Store interface {
	// Entities
	ListEntities(ctx context.Context) ([]model.CanonicalEntity, error)
	ListEntitiesByStatus(ctx context.Context, status model.EntityStatus) ([]model.CanonicalEntity, error)
	GetEntity(ctx context.Context, id string) (*model.CanonicalEntity, error)
	CreateEntity(ctx context.Context, e *model.CanonicalEntity) error
	UpdateEntity(ctx context.Context, e *model.CanonicalEntity) error
	UpdateEntityStatus(ctx context.Context, entityID string, status model.EntityStatus) error

	// Field values
	GetFieldValue(ctx context.Context, entityID, field string) (*model.FieldValue, error)
	UpsertFieldValue(ctx context.Context, fv *model.FieldValue) error
	ListFieldValues(ctx context.Context, entityID string) ([]model.FieldValue, error)
	ValuesByFieldScope(ctx context.Context, field, position string) ([]float64, error)

	// Conflict lineage
	CreateConflict(ctx context.Context, cr *model.ConflictRecord) error
	LatestConflict(ctx context.Context, entityID, field string) (*model.ConflictRecord, error)
	ListConflicts(ctx context.Context, entityID string) ([]model.ConflictRecord, error)

	// Quality rules
	ListRules(ctx context.Context) ([]model.QualityRule, error)
	ListEnabledRules(ctx context.Context) ([]model.QualityRule, error)
	CreateRule(ctx context.Context, r *model.QualityRule) error
	SetRuleEnabled(ctx context.Context, id string, enabled bool) error
	UpdateRuleThresholds(ctx context.Context, id string, min, max, threshold float64) error

	// Violations
	CreateViolation(ctx context.Context, v *model.Violation) error
	GetViolation(ctx context.Context, id string) (*model.Violation, error)
	LatestViolation(ctx context.Context, entityID, ruleID, field string) (*model.Violation, error)
	ListViolations(ctx context.Context, filter ViolationFilter) ([]model.Violation, error)
	UpdateViolationReview(ctx context.Context, id string, status model.ReviewStatus) error
	OpenCriticalCount(ctx context.Context, entityID string) (int, error)

	// Execution history
	SaveExecution(ctx context.Context, e *model.PipelineExecution) error
	ListExecutions(ctx context.Context, limit int) ([]model.PipelineExecution, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
