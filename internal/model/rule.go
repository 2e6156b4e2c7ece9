package model

import "time"

// RuleType identifies the kind of quality check a rule performs.
type RuleType string

const (
	RuleTypeRange        RuleType = "range"
	RuleTypeConsistency  RuleType = "consistency"
	RuleTypeOutlier      RuleType = "outlier"
	RuleTypeChange       RuleType = "change"
	RuleTypeCompleteness RuleType = "completeness"
)

// ThresholdKind describes how a rule threshold is interpreted.
type ThresholdKind string

const (
	ThresholdAbsolute ThresholdKind = "absolute"
	ThresholdPercent  ThresholdKind = "percent"
	ThresholdStdDev   ThresholdKind = "stddev"
)

// Relation is the declared relationship between two fields in a
// consistency rule.
type Relation string

const (
	RelationEqual        Relation = "equality"
	RelationProportional Relation = "proportional"
	RelationInverse      Relation = "inverse_proportional"
)

// Severity classifies a violation and drives downstream handling,
// including quarantine.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// ScopeAll is the wildcard scope/source selector for quality rules.
const ScopeAll = "all"

// QualityRule is an externally configured validation rule, read by the
// quality engine through its refreshable cache.
type QualityRule struct {
	ID            string        `json:"id"`
	Field         string        `json:"field"`
	Scope         string        `json:"scope"`  // position, or "all"
	Source        string        `json:"source"` // contributing source, or "all"
	Type          RuleType      `json:"type"`
	Min           float64       `json:"min,omitempty"`
	Max           float64       `json:"max,omitempty"`
	Threshold     float64       `json:"threshold,omitempty"`
	ThresholdKind ThresholdKind `json:"threshold_kind,omitempty"`
	Relation      Relation      `json:"relation,omitempty"`
	RelatedField  string        `json:"related_field,omitempty"`
	Ratio         float64       `json:"ratio,omitempty"`
	Required      bool          `json:"required,omitempty"`
	Severity      Severity      `json:"severity"`
	Enabled       bool          `json:"enabled"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ReviewStatus is the reviewer disposition of a violation.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewApproved  ReviewStatus = "approved"
	ReviewDismissed ReviewStatus = "dismissed"
)

// Violation is a data-level finding produced by the quality engine. It is
// closed by a reviewer action, never by the pipeline itself.
type Violation struct {
	ID        string       `json:"id"`
	EntityID  string       `json:"entity_id"`
	RuleID    string       `json:"rule_id"`
	Field     string       `json:"field"`
	Observed  string       `json:"observed"`
	Expected  string       `json:"expected"`
	Severity  Severity     `json:"severity"`
	Review    ReviewStatus `json:"review"`
	CreatedAt time.Time    `json:"created_at"`
}

// Open reports whether the violation still awaits review.
func (v *Violation) Open() bool {
	return v.Review == ReviewPending
}
