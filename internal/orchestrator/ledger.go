package orchestrator

import (
	"sync"
	"time"

	"github.com/draftiq/scoutsync/internal/model"
)

// Ledger is the bounded, in-memory execution history. Appends are
// serialized so a concurrent reader never observes a partially written run.
type Ledger struct {
	mu    sync.RWMutex
	cap   int
	execs []*model.PipelineExecution
}

// NewLedger creates a ledger holding at most capacity executions.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = 50
	}
	return &Ledger{cap: capacity}
}

// Append records a completed execution, evicting the oldest entry when full.
func (l *Ledger) Append(exec *model.PipelineExecution) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.execs = append(l.execs, exec)
	if len(l.execs) > l.cap {
		l.execs = l.execs[len(l.execs)-l.cap:]
	}
}

// Len returns the number of executions currently retained.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.execs)
}

// LastN returns up to n most recent executions, newest first.
func (l *Ledger) LastN(n int) []*model.PipelineExecution {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.execs) {
		n = len(l.execs)
	}
	out := make([]*model.PipelineExecution, 0, n)
	for i := len(l.execs) - 1; i >= len(l.execs)-n; i-- {
		out = append(out, l.execs[i])
	}
	return out
}

// SuccessRate returns the fraction of retained runs that completed with
// aggregate status success. Returns 0 when the ledger is empty.
func (l *Ledger) SuccessRate() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.execs) == 0 {
		return 0
	}
	succeeded := 0
	for _, e := range l.execs {
		if e.Status == model.ExecutionStatusSuccess {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(l.execs))
}

// StageHealth summarizes one stage's behavior across the retained ledger.
// It is computed on demand; no running totals are maintained elsewhere.
type StageHealth struct {
	Stage        string        `json:"stage"`
	Runs         int           `json:"runs"`
	Successes    int           `json:"successes"`
	Failures     int           `json:"failures"`
	SuccessRate  float64       `json:"success_rate"`
	AvgDuration  time.Duration `json:"avg_duration"`
	TotalRecords int           `json:"total_records"`
}

// Health computes per-stage health for every stage seen in the ledger.
// Skipped stages do not count as runs.
func (l *Ledger) Health() map[string]StageHealth {
	l.mu.RLock()
	defer l.mu.RUnlock()

	totals := make(map[string]*StageHealth)
	durations := make(map[string]time.Duration)

	for _, e := range l.execs {
		for i := range e.Stages {
			se := &e.Stages[i]
			if se.Status != model.StageStatusSuccess && se.Status != model.StageStatusFailed {
				continue
			}
			h := totals[se.Stage]
			if h == nil {
				h = &StageHealth{Stage: se.Stage}
				totals[se.Stage] = h
			}
			h.Runs++
			if se.Status == model.StageStatusSuccess {
				h.Successes++
			} else {
				h.Failures++
			}
			h.TotalRecords += se.RecordsProcessed
			durations[se.Stage] += se.Duration()
		}
	}

	out := make(map[string]StageHealth, len(totals))
	for name, h := range totals {
		h.SuccessRate = float64(h.Successes) / float64(h.Runs)
		h.AvgDuration = durations[name] / time.Duration(h.Runs)
		out[name] = *h
	}
	return out
}
