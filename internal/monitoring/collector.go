// Package monitoring collects pipeline health metrics and sends webhook
// alerts when failure thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Execution metrics (within the lookback window of retained runs).
	ExecutionsTotal   int     `json:"executions_total"`
	ExecutionsSuccess int     `json:"executions_success"`
	ExecutionsPartial int     `json:"executions_partial"`
	ExecutionsFailed  int     `json:"executions_failed"`
	FailureRate       float64 `json:"failure_rate"`

	// Data quality counters.
	EntitiesActive      int `json:"entities_active"`
	EntitiesQuarantined int `json:"entities_quarantined"`
	OpenViolations      int `json:"open_violations"`
	OpenCritical        int `json:"open_critical"`

	// Metadata.
	LookbackLimit int       `json:"lookback_limit"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot over the most recent lookback executions.
func (c *Collector) Collect(ctx context.Context, lookback int) (*MetricsSnapshot, error) {
	if lookback <= 0 {
		lookback = 50
	}
	snap := &MetricsSnapshot{
		LookbackLimit: lookback,
		CollectedAt:   time.Now().UTC(),
	}

	execs, err := c.store.ListExecutions(ctx, lookback)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list executions")
	}

	snap.ExecutionsTotal = len(execs)
	for _, e := range execs {
		switch e.Status {
		case model.ExecutionStatusSuccess:
			snap.ExecutionsSuccess++
		case model.ExecutionStatusPartial:
			snap.ExecutionsPartial++
		case model.ExecutionStatusFailed:
			snap.ExecutionsFailed++
		}
	}
	// Partial runs produced data; only total failures count against the rate.
	finished := snap.ExecutionsSuccess + snap.ExecutionsPartial + snap.ExecutionsFailed
	if finished > 0 {
		snap.FailureRate = float64(snap.ExecutionsFailed) / float64(finished)
	}

	active, err := c.store.ListEntitiesByStatus(ctx, model.EntityStatusActive)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list active entities")
	}
	snap.EntitiesActive = len(active)

	quarantined, err := c.store.ListEntitiesByStatus(ctx, model.EntityStatusQuarantined)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list quarantined entities")
	}
	snap.EntitiesQuarantined = len(quarantined)

	open, err := c.store.ListViolations(ctx, store.ViolationFilter{
		Review: model.ReviewPending,
		Limit:  10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list open violations")
	}
	snap.OpenViolations = len(open)
	for _, v := range open {
		if v.Severity == model.SeverityCritical {
			snap.OpenCritical++
		}
	}

	return snap, nil
}
