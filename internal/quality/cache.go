// Package quality validates canonical entities against configurable rules,
// producing violations, quality scores, and quarantine decisions.
package quality

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/model"
)

// ConfigurationError marks an invalid rule definition. Bad rules are
// rejected when the cache is refreshed, never at evaluation time.
type ConfigurationError struct {
	RuleID string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("quality: invalid rule %s: %s", e.RuleID, e.Reason)
}

// RuleSource provides the externally configured rule set.
type RuleSource interface {
	ListEnabledRules(ctx context.Context) ([]model.QualityRule, error)
}

// Cache is the read-mostly rule cache shared across runs. It is refreshed
// explicitly, never implicitly, so a rule change can't surprise a run in
// flight.
type Cache struct {
	source RuleSource

	mu    sync.RWMutex
	rules []model.QualityRule
}

// NewCache creates an empty rule cache backed by the given source.
func NewCache(source RuleSource) *Cache {
	return &Cache{source: source}
}

// Refresh reloads enabled rules from the source. Every rule is validated;
// the first invalid definition aborts the refresh with a ConfigurationError
// and leaves the previous rule set in place.
func (c *Cache) Refresh(ctx context.Context) error {
	rules, err := c.source.ListEnabledRules(ctx)
	if err != nil {
		return err
	}
	for i := range rules {
		if err := ValidateRule(&rules[i]); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.rules = rules
	c.mu.Unlock()

	zap.L().Info("quality: rule cache refreshed", zap.Int("rules", len(rules)))
	return nil
}

// Rules returns a copy of the cached rule set.
func (c *Cache) Rules() []model.QualityRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.QualityRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// RulesFor returns the rules applying to a field for the given entity scope
// and contributing source. For each rule type, only the most specific scope
// match applies: (scope, source) beats (scope, all) beats (all, source)
// beats (all, all).
func (c *Cache) RulesFor(field, scope, source string) []model.QualityRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := make(map[model.RuleType]int) // type -> best specificity seen
	picked := make(map[model.RuleType][]model.QualityRule)

	for _, r := range c.rules {
		if r.Field != field || r.Type == model.RuleTypeCompleteness {
			continue
		}
		spec, ok := specificity(&r, scope, source)
		if !ok {
			continue
		}
		if cur, seen := best[r.Type]; !seen || spec > cur {
			best[r.Type] = spec
			picked[r.Type] = []model.QualityRule{r}
		} else if spec == cur {
			picked[r.Type] = append(picked[r.Type], r)
		}
	}

	var out []model.QualityRule
	for _, rs := range picked {
		out = append(out, rs...)
	}
	return out
}

// CompletenessRules returns the completeness rules applying to an entity
// scope. These are evaluated against the run's contributing sources rather
// than any single resolved value, so they bypass the per-value lookup.
func (c *Cache) CompletenessRules(scope string) []model.QualityRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []model.QualityRule
	for _, r := range c.rules {
		if r.Type != model.RuleTypeCompleteness {
			continue
		}
		if r.Scope == scope || r.Scope == model.ScopeAll {
			out = append(out, r)
		}
	}
	return out
}

// specificity scores how precisely a rule targets the given scope and
// source; ok is false when the rule does not apply at all.
func specificity(r *model.QualityRule, scope, source string) (int, bool) {
	score := 0
	switch r.Scope {
	case scope:
		score += 2
	case model.ScopeAll:
	default:
		return 0, false
	}
	switch r.Source {
	case source:
		score++
	case model.ScopeAll:
	default:
		return 0, false
	}
	return score, true
}

// ValidateRule rejects malformed rule definitions.
func ValidateRule(r *model.QualityRule) error {
	if r.Field == "" {
		return &ConfigurationError{RuleID: r.ID, Reason: "field is required"}
	}
	switch r.Severity {
	case model.SeverityInfo, model.SeverityWarning, model.SeverityCritical:
	default:
		return &ConfigurationError{RuleID: r.ID, Reason: fmt.Sprintf("unknown severity %q", r.Severity)}
	}

	switch r.Type {
	case model.RuleTypeRange:
		if r.Min > r.Max {
			return &ConfigurationError{RuleID: r.ID, Reason: "range min exceeds max"}
		}
	case model.RuleTypeConsistency:
		if r.RelatedField == "" {
			return &ConfigurationError{RuleID: r.ID, Reason: "consistency rule needs related_field"}
		}
		switch r.Relation {
		case model.RelationEqual:
		case model.RelationProportional, model.RelationInverse:
			if r.Ratio <= 0 {
				return &ConfigurationError{RuleID: r.ID, Reason: "proportional relation needs positive ratio"}
			}
		default:
			return &ConfigurationError{RuleID: r.ID, Reason: fmt.Sprintf("unknown relation %q", r.Relation)}
		}
	case model.RuleTypeOutlier, model.RuleTypeChange:
	case model.RuleTypeCompleteness:
		if r.Source == "" || r.Source == model.ScopeAll {
			return &ConfigurationError{RuleID: r.ID, Reason: "completeness rule needs a concrete source"}
		}
	default:
		return &ConfigurationError{RuleID: r.ID, Reason: fmt.Sprintf("unknown rule type %q", r.Type)}
	}
	return nil
}
