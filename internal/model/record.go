// Package model defines the core data types shared across the scoutsync
// pipeline: raw source records, canonical prospects, conflict lineage,
// quality rules, and execution history.
package model

import "time"

// RawSourceRecord is one source's unmerged observation of a prospect for a
// single pipeline run. It is immutable: collectors create it once and the
// engines only ever read it.
type RawSourceRecord struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	Name        string            `json:"name"`
	Position    string            `json:"position"`
	School      string            `json:"school"`
	Fields      map[string]string `json:"fields"`
	RetrievedAt time.Time         `json:"retrieved_at"`
}

// Field returns the raw value for a field key and whether it was reported.
func (r *RawSourceRecord) Field(key string) (string, bool) {
	v, ok := r.Fields[key]
	return v, ok
}
