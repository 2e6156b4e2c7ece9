package quality

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/model"
)

// Store abstracts the persistence methods the quality engine needs.
type Store interface {
	// ValuesByFieldScope returns every current canonical numeric value for
	// a field within one position scope, for outlier statistics.
	ValuesByFieldScope(ctx context.Context, field, position string) ([]float64, error)
	CreateViolation(ctx context.Context, v *model.Violation) error
	GetViolation(ctx context.Context, id string) (*model.Violation, error)
	LatestViolation(ctx context.Context, entityID, ruleID, field string) (*model.Violation, error)
	UpdateViolationReview(ctx context.Context, id string, status model.ReviewStatus) error
	OpenCriticalCount(ctx context.Context, entityID string) (int, error)
	UpdateEntityStatus(ctx context.Context, entityID string, status model.EntityStatus) error
}

// Engine evaluates canonical entities against the cached rule set.
type Engine struct {
	cache     *Cache
	store     Store
	minSample int
	now       func() time.Time // injectable for testing
}

// NewEngine creates a quality engine. minSample is the smallest scope group
// that yields an outlier verdict.
func NewEngine(cache *Cache, store Store, minSample int) *Engine {
	if minSample <= 0 {
		minSample = 5
	}
	return &Engine{
		cache:     cache,
		store:     store,
		minSample: minSample,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed clock for testing.
func (e *Engine) WithNow(t time.Time) *Engine {
	e.now = func() time.Time { return t }
	return e
}

// EvalInput is one entity's resolved state for a validation pass.
type EvalInput struct {
	Entity model.CanonicalEntity
	Fields []model.FieldValue
	// Prior maps field -> previously resolved value, for change-magnitude
	// checks. Fields absent here have no history.
	Prior map[string]string
	// Contributions maps field -> sources that reported a value this run,
	// for completeness checks.
	Contributions map[string][]string
}

// Evaluate runs every applicable rule against the entity, persists the
// resulting violations, and updates the entity's quarantine state. Findings
// are data, not failures: only defects in the evaluation itself return an
// error.
func (e *Engine) Evaluate(ctx context.Context, in EvalInput) ([]model.Violation, error) {
	var violations []model.Violation

	fieldMap := make(map[string]model.FieldValue, len(in.Fields))
	for _, fv := range in.Fields {
		fieldMap[fv.Field] = fv
	}

	for _, fv := range in.Fields {
		rules := e.cache.RulesFor(fv.Field, in.Entity.Position, fv.Source)
		for _, rule := range rules {
			v, err := e.evalRule(ctx, &rule, &in.Entity, fv, fieldMap, in.Prior)
			if err != nil {
				return nil, err
			}
			if v != nil {
				violations = append(violations, *v)
			}
		}
	}

	for _, rule := range e.cache.CompletenessRules(in.Entity.Position) {
		if v := e.evalCompleteness(&rule, &in.Entity, in.Contributions); v != nil {
			violations = append(violations, *v)
		}
	}

	// Re-observing a finding already on record for the same rule and field
	// mints nothing new, whatever its review disposition. Unbounded re-runs
	// on static data must not pile up pending violations or undo a
	// reviewer's decision.
	persisted := make([]model.Violation, 0, len(violations))
	for i := range violations {
		v := &violations[i]
		prior, err := e.store.LatestViolation(ctx, v.EntityID, v.RuleID, v.Field)
		if err != nil {
			return nil, eris.Wrapf(err, "quality: latest violation %s/%s", in.Entity.ID, v.RuleID)
		}
		if prior != nil && prior.Observed == v.Observed && prior.Severity == v.Severity {
			continue
		}
		if err := e.store.CreateViolation(ctx, v); err != nil {
			return nil, eris.Wrapf(err, "quality: create violation for %s", in.Entity.ID)
		}
		persisted = append(persisted, *v)
	}

	if err := e.applyQuarantine(ctx, in.Entity.ID, in.Entity.Status); err != nil {
		return nil, err
	}

	if len(persisted) > 0 {
		zap.L().Info("quality: violations recorded",
			zap.String("entity_id", in.Entity.ID),
			zap.Int("count", len(persisted)),
		)
	}
	return persisted, nil
}

func (e *Engine) evalRule(ctx context.Context, rule *model.QualityRule, ent *model.CanonicalEntity, fv model.FieldValue, fields map[string]model.FieldValue, prior map[string]string) (*model.Violation, error) {
	switch rule.Type {
	case model.RuleTypeRange:
		return e.evalRange(rule, ent, fv), nil
	case model.RuleTypeConsistency:
		return e.evalConsistency(rule, ent, fv, fields), nil
	case model.RuleTypeOutlier:
		return e.evalOutlier(ctx, rule, ent, fv)
	case model.RuleTypeChange:
		return e.evalChange(rule, ent, fv, prior), nil
	}
	return nil, nil
}

// evalRange flags values outside [min, max]. Range breaches are always
// critical regardless of the rule's configured severity.
func (e *Engine) evalRange(rule *model.QualityRule, ent *model.CanonicalEntity, fv model.FieldValue) *model.Violation {
	v, err := strconv.ParseFloat(fv.Value, 64)
	if err != nil {
		return nil
	}
	if v >= rule.Min && v <= rule.Max {
		return nil
	}
	return e.newViolation(rule, ent, fv.Field, fv.Value,
		fmt.Sprintf("value within [%g, %g]", rule.Min, rule.Max),
		model.SeverityCritical)
}

// evalConsistency checks the declared relationship between two fields.
// Tolerance for proportional relations is the rule threshold as a fraction
// (default 10%).
func (e *Engine) evalConsistency(rule *model.QualityRule, ent *model.CanonicalEntity, fv model.FieldValue, fields map[string]model.FieldValue) *model.Violation {
	related, ok := fields[rule.RelatedField]
	if !ok {
		return nil
	}

	if rule.Relation == model.RelationEqual {
		if fv.Value == related.Value {
			return nil
		}
		return e.newViolation(rule, ent, fv.Field, fv.Value,
			fmt.Sprintf("equal to %s (%s)", rule.RelatedField, related.Value),
			rule.Severity)
	}

	v, err1 := strconv.ParseFloat(fv.Value, 64)
	rv, err2 := strconv.ParseFloat(related.Value, 64)
	if err1 != nil || err2 != nil {
		return nil
	}

	tolerance := rule.Threshold
	if tolerance <= 0 {
		tolerance = 0.1
	}

	var expected float64
	switch rule.Relation {
	case model.RelationProportional:
		expected = rule.Ratio * rv
	case model.RelationInverse:
		if rv == 0 {
			return nil
		}
		expected = rule.Ratio / rv
	default:
		return nil
	}

	if expected == 0 {
		if v == 0 {
			return nil
		}
	} else if math.Abs(v-expected)/math.Abs(expected) <= tolerance {
		return nil
	}
	return e.newViolation(rule, ent, fv.Field, fv.Value,
		fmt.Sprintf("%s of %s within %.0f%% of %g", rule.Relation, rule.RelatedField, tolerance*100, expected),
		rule.Severity)
}

// evalOutlier compares the value against its scope group's distribution.
// Groups smaller than the minimum sample size yield no verdict at all.
func (e *Engine) evalOutlier(ctx context.Context, rule *model.QualityRule, ent *model.CanonicalEntity, fv model.FieldValue) (*model.Violation, error) {
	v, err := strconv.ParseFloat(fv.Value, 64)
	if err != nil {
		return nil, nil
	}

	values, err := e.store.ValuesByFieldScope(ctx, fv.Field, ent.Position)
	if err != nil {
		return nil, eris.Wrapf(err, "quality: scope values for %s/%s", fv.Field, ent.Position)
	}
	if len(values) < e.minSample {
		return nil, nil // insufficient data, not "no violation"
	}

	mean, stddev := meanStdDev(values)
	if stddev == 0 {
		return nil, nil
	}

	dev := math.Abs(v-mean) / stddev
	switch {
	case dev >= 3:
		return e.newViolation(rule, ent, fv.Field, fv.Value,
			fmt.Sprintf("within 3 stddev of scope mean %.2f (stddev %.2f)", mean, stddev),
			model.SeverityCritical), nil
	case dev > 2:
		return e.newViolation(rule, ent, fv.Field, fv.Value,
			fmt.Sprintf("within 2 stddev of scope mean %.2f (stddev %.2f)", mean, stddev),
			model.SeverityWarning), nil
	}
	return nil, nil
}

// evalChange compares the new value against the immediately prior resolved
// value for the same entity.
func (e *Engine) evalChange(rule *model.QualityRule, ent *model.CanonicalEntity, fv model.FieldValue, prior map[string]string) *model.Violation {
	prev, ok := prior[fv.Field]
	if !ok {
		return nil
	}
	v, err1 := strconv.ParseFloat(fv.Value, 64)
	p, err2 := strconv.ParseFloat(prev, 64)
	if err1 != nil || err2 != nil || p == 0 {
		return nil
	}

	change := math.Abs(v-p) / math.Abs(p)
	switch {
	case change > 0.5:
		return e.newViolation(rule, ent, fv.Field, fv.Value,
			fmt.Sprintf("change from %s below 50%%", prev), model.SeverityCritical)
	case change > 0.2:
		return e.newViolation(rule, ent, fv.Field, fv.Value,
			fmt.Sprintf("change from %s below 20%%", prev), model.SeverityWarning)
	}
	return nil
}

// evalCompleteness flags required or optional sources that reported nothing
// for the rule's field this run.
func (e *Engine) evalCompleteness(rule *model.QualityRule, ent *model.CanonicalEntity, contributions map[string][]string) *model.Violation {
	for _, src := range contributions[rule.Field] {
		if src == rule.Source {
			return nil
		}
	}
	severity := model.SeverityWarning
	if rule.Required {
		severity = model.SeverityCritical
	}
	return e.newViolation(rule, ent, rule.Field, "",
		fmt.Sprintf("value reported by source %s", rule.Source), severity)
}

// applyQuarantine flips the entity's status based on its open critical
// violations: at least one open critical means quarantined, none means
// active again.
func (e *Engine) applyQuarantine(ctx context.Context, entityID string, current model.EntityStatus) error {
	open, err := e.store.OpenCriticalCount(ctx, entityID)
	if err != nil {
		return eris.Wrapf(err, "quality: count open critical for %s", entityID)
	}

	want := model.EntityStatusActive
	if open > 0 {
		want = model.EntityStatusQuarantined
	}
	if want == current {
		return nil
	}
	if err := e.store.UpdateEntityStatus(ctx, entityID, want); err != nil {
		return eris.Wrapf(err, "quality: update entity status %s", entityID)
	}
	zap.L().Info("quality: entity status changed",
		zap.String("entity_id", entityID),
		zap.String("status", string(want)),
		zap.Int("open_critical", open),
	)
	return nil
}

// Review records a reviewer disposition on a violation and recomputes the
// entity's quarantine state.
func (e *Engine) Review(ctx context.Context, violationID string, status model.ReviewStatus) error {
	if status != model.ReviewApproved && status != model.ReviewDismissed {
		return eris.Errorf("quality: invalid review status %q", status)
	}

	v, err := e.store.GetViolation(ctx, violationID)
	if err != nil {
		return eris.Wrapf(err, "quality: get violation %s", violationID)
	}
	if v == nil {
		return eris.Errorf("quality: violation not found: %s", violationID)
	}

	if err := e.store.UpdateViolationReview(ctx, violationID, status); err != nil {
		return eris.Wrapf(err, "quality: update review %s", violationID)
	}

	return e.applyQuarantine(ctx, v.EntityID, "")
}

func (e *Engine) newViolation(rule *model.QualityRule, ent *model.CanonicalEntity, field, observed, expected string, severity model.Severity) *model.Violation {
	return &model.Violation{
		ID:        uuid.New().String(),
		EntityID:  ent.ID,
		RuleID:    rule.ID,
		Field:     field,
		Observed:  observed,
		Expected:  expected,
		Severity:  severity,
		Review:    model.ReviewPending,
		CreatedAt: e.now(),
	}
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
