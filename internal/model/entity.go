package model

import "time"

// EntityStatus is the publication state of a canonical prospect.
type EntityStatus string

const (
	EntityStatusActive      EntityStatus = "active"
	EntityStatusQuarantined EntityStatus = "quarantined"
)

// CanonicalEntity is the single merged record representing one real-world
// prospect across all sources. Entities are never deleted, only quarantined.
type CanonicalEntity struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Position        string       `json:"position"`
	School          string       `json:"school"`
	Status          EntityStatus `json:"status"`
	SourceRecordIDs []string     `json:"source_record_ids,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// FieldValue is the current resolved value for one (entity, field) pair.
// Superseded values are not kept here; they remain discoverable through the
// ConflictRecord trail.
type FieldValue struct {
	EntityID   string    `json:"entity_id"`
	Field      string    `json:"field"`
	Value      string    `json:"value"`
	Source     string    `json:"source"`
	Rule       string    `json:"rule"`
	Conflicted bool      `json:"conflicted"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Candidate is one source's proposed value for a contested field.
type Candidate struct {
	Source      string    `json:"source"`
	Value       string    `json:"value"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// ConflictRecord is an append-only audit entry written whenever two or more
// sources disagree on a field, or an operator overrides a value. Records are
// never mutated or deleted.
type ConflictRecord struct {
	ID            string      `json:"id"`
	EntityID      string      `json:"entity_id"`
	Field         string      `json:"field"`
	Candidates    []Candidate `json:"candidates"`
	WinningSource string      `json:"winning_source"`
	Rule          string      `json:"rule"`
	CreatedAt     time.Time   `json:"created_at"`
}

// CandidateFor returns the candidate contributed by the given source.
func (c *ConflictRecord) CandidateFor(source string) (Candidate, bool) {
	for _, cand := range c.Candidates {
		if cand.Source == source {
			return cand, true
		}
	}
	return Candidate{}, false
}
