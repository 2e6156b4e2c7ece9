package model

import "time"

// StageStatus is the lifecycle state of one stage within a pipeline run.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// ExecutionStatus is the aggregate outcome of a pipeline run.
type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusPartial ExecutionStatus = "partial"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// StageExecution records one stage's outcome within a single run. It is
// owned exclusively by the PipelineExecution that created it.
type StageExecution struct {
	Stage            string      `json:"stage"`
	Order            int         `json:"order"`
	Status           StageStatus `json:"status"`
	StartedAt        time.Time   `json:"started_at,omitempty"`
	EndedAt          time.Time   `json:"ended_at,omitempty"`
	RecordsProcessed int         `json:"records_processed"`
	Error            string      `json:"error,omitempty"`
	RetryCount       int         `json:"retry_count"`
}

// Duration returns the stage wall-clock duration, or zero if it never ran.
func (s *StageExecution) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// PipelineExecution is the root aggregate of one orchestrator run.
type PipelineExecution struct {
	ID          string           `json:"id"`
	TriggeredBy string           `json:"triggered_by"`
	StartedAt   time.Time        `json:"started_at"`
	EndedAt     time.Time        `json:"ended_at,omitempty"`
	Stages      []StageExecution `json:"stages"`
	Status      ExecutionStatus  `json:"status"`
}

// StageCounts tallies stage outcomes for aggregate classification.
func (e *PipelineExecution) StageCounts() (succeeded, failed, skipped int) {
	for _, s := range e.Stages {
		switch s.Status {
		case StageStatusSuccess:
			succeeded++
		case StageStatusFailed:
			failed++
		case StageStatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// FailedStage returns the first failed stage, if any.
func (e *PipelineExecution) FailedStage() *StageExecution {
	for i := range e.Stages {
		if e.Stages[i].Status == StageStatusFailed {
			return &e.Stages[i]
		}
	}
	return nil
}
