package reconcile

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/draftiq/scoutsync/internal/model"
)

// Resolution rule names recorded on FieldValue and ConflictRecord.
const (
	RuleSingleSource     = "single_source"
	RuleUnanimous        = "unanimous"
	RuleExclusiveSource  = "exclusive_source"
	RuleSourceRank       = "source_rank"
	RuleLatestRetrieval  = "latest_retrieval"
	RuleManualOverride   = "manual_override"
)

// FieldAuthority declares which source wins a contested field: either one
// exclusive authority, or an ordered ranking of sources.
type FieldAuthority struct {
	Exclusive string   `yaml:"exclusive,omitempty"`
	Ranking   []string `yaml:"ranking,omitempty"`
}

// Table is the statically configured per-field authority table. Fields with
// no entry fall back to the most-recently-retrieved candidate.
type Table struct {
	Fields map[string]FieldAuthority `yaml:"fields"`
}

// LoadTable reads an authority table from a YAML file. A missing file yields
// an empty table, so every field resolves by retrieval recency.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Table{Fields: make(map[string]FieldAuthority)}, nil
		}
		return nil, eris.Wrapf(err, "reconcile: read authority table %s", path)
	}

	// The YAML has a top-level "authority" key.
	var wrapper struct {
		Authority Table `yaml:"authority"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "reconcile: parse authority table")
	}

	t := &wrapper.Authority
	if t.Fields == nil {
		t.Fields = make(map[string]FieldAuthority)
	}
	for field, fa := range t.Fields {
		if fa.Exclusive != "" && len(fa.Ranking) > 0 {
			return nil, eris.Errorf("reconcile: field %s declares both exclusive and ranking", field)
		}
	}
	return t, nil
}

// Resolve picks the winning candidate for a contested field and returns the
// rule name applied. Candidates must be non-empty.
func (t *Table) Resolve(field string, candidates []model.Candidate) (model.Candidate, string) {
	if fa, ok := t.Fields[field]; ok {
		if fa.Exclusive != "" {
			for _, c := range candidates {
				if c.Source == fa.Exclusive {
					return c, RuleExclusiveSource
				}
			}
			// Exclusive authority did not report; fall through to recency.
		}
		for _, src := range fa.Ranking {
			for _, c := range candidates {
				if c.Source == src {
					return c, RuleSourceRank
				}
			}
		}
	}
	return latest(candidates), RuleLatestRetrieval
}

// latest returns the most recently retrieved candidate. Ties break on
// source name for determinism.
func latest(candidates []model.Candidate) model.Candidate {
	sorted := make([]model.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].RetrievedAt.Equal(sorted[j].RetrievedAt) {
			return sorted[i].RetrievedAt.After(sorted[j].RetrievedAt)
		}
		return sorted[i].Source < sorted[j].Source
	})
	return sorted[0]
}
