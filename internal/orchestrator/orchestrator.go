// Package orchestrator sequences the registered pipeline stages, applies
// retry and failure-mode policy, and records execution history.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/resilience"
)

// StageInput carries the previous stage's output into the next stage.
type StageInput struct {
	ExecutionID string
	TriggeredBy string
	Payload     any
}

// StageResult is the uniform result contract every stage returns.
type StageResult struct {
	RecordsProcessed int
	Errors           []string
	Output           any
}

// Stage is one unit of work in the pipeline's ordered execution sequence.
// The orchestrator has no knowledge of what a stage does internally; a stage
// may parallelize its own work but must be self-limiting, since a timeout
// only stops the orchestrator from waiting, not the stage itself.
type Stage interface {
	Name() string
	Execute(ctx context.Context, in *StageInput) (*StageResult, error)
}

// FailureMode governs how the orchestrator reacts to a stage failure.
type FailureMode string

const (
	// FailFast aborts the run on the first exhausted stage; later stages
	// are marked skipped and never invoked.
	FailFast FailureMode = "fail_fast"
	// PartialSuccess lets later stages run despite earlier failures.
	PartialSuccess FailureMode = "partial_success"
	// RetryContinue collects failed stages during the first pass and
	// re-attempts each once more after all stages have been visited.
	RetryContinue FailureMode = "retry_continue"
)

// ParseFailureMode validates a configured failure mode string.
func ParseFailureMode(s string) (FailureMode, error) {
	switch FailureMode(s) {
	case FailFast, PartialSuccess, RetryContinue:
		return FailureMode(s), nil
	}
	return "", eris.Errorf("orchestrator: unknown failure mode %q", s)
}

// NotifyFunc receives the completed execution and its classification
// (success, partial, or failure). Errors or panics raised by the callback
// never affect the run's recorded outcome.
type NotifyFunc func(exec *model.PipelineExecution, classification string)

// Options configures an Orchestrator instance.
type Options struct {
	FailureMode FailureMode
	// MaxRetries is the total number of attempts per stage, including the
	// first. Default 3.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts. Default 2s.
	RetryDelay time.Duration
	// StageTimeout bounds each stage invocation. Zero means no timeout.
	StageTimeout time.Duration
	// HistorySize caps the execution ledger. Default 50.
	HistorySize int
	Notify      NotifyFunc
}

type registration struct {
	order int
	stage Stage
}

// Orchestrator owns the ordered stage list and the execution ledger.
type Orchestrator struct {
	opts   Options
	ledger *Ledger

	mu     sync.Mutex
	stages []registration
}

// New creates an Orchestrator with the given options.
func New(opts Options) *Orchestrator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.FailureMode == "" {
		opts.FailureMode = FailFast
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 50
	}
	return &Orchestrator{
		opts:   opts,
		ledger: NewLedger(opts.HistorySize),
	}
}

// Ledger exposes the execution history for queries.
func (o *Orchestrator) Ledger() *Ledger {
	return o.ledger
}

// Register adds a stage at an explicit position. Duplicate positions are
// rejected.
func (o *Orchestrator) Register(stage Stage, order int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, reg := range o.stages {
		if reg.order == order {
			return eris.Errorf("orchestrator: position %d already registered to stage %s", order, reg.stage.Name())
		}
		if reg.stage.Name() == stage.Name() {
			return eris.Errorf("orchestrator: stage %s already registered", stage.Name())
		}
	}

	o.stages = append(o.stages, registration{order: order, stage: stage})
	sort.Slice(o.stages, func(i, j int) bool { return o.stages[i].order < o.stages[j].order })
	return nil
}

// Execute runs all registered, non-skipped stages strictly in ascending
// order. Stage N's input is stage N-1's output, so stages are never run in
// parallel. The skip set excludes stages for this run only.
func (o *Orchestrator) Execute(ctx context.Context, triggeredBy string, skip map[string]bool) (*model.PipelineExecution, error) {
	o.mu.Lock()
	stages := make([]registration, len(o.stages))
	copy(stages, o.stages)
	o.mu.Unlock()

	if len(stages) == 0 {
		return nil, eris.New("orchestrator: no stages registered")
	}

	exec := &model.PipelineExecution{
		ID:          uuid.New().String(),
		TriggeredBy: triggeredBy,
		StartedAt:   time.Now().UTC(),
		Status:      model.ExecutionStatusRunning,
		Stages:      make([]model.StageExecution, len(stages)),
	}
	for i, reg := range stages {
		exec.Stages[i] = model.StageExecution{
			Stage:  reg.stage.Name(),
			Order:  reg.order,
			Status: model.StageStatusPending,
		}
	}

	log := zap.L().With(zap.String("execution_id", exec.ID), zap.String("triggered_by", triggeredBy))
	log.Info("orchestrator: starting run", zap.Int("stages", len(stages)))

	var payload any
	var deferred []int
	aborted := false

	// Outputs by stage position, so a deferred retry is fed by its nearest
	// successful predecessor rather than by whatever ran last.
	outputs := make([]any, len(stages))
	produced := make([]bool, len(stages))

	for i, reg := range stages {
		se := &exec.Stages[i]

		if skip[reg.stage.Name()] {
			se.Status = model.StageStatusSkipped
			log.Info("orchestrator: stage skipped by caller", zap.String("stage", se.Stage))
			continue
		}
		if aborted {
			se.Status = model.StageStatusSkipped
			continue
		}

		out := o.runStage(ctx, reg.stage, se, exec, payload, o.opts.MaxRetries)
		if se.Status == model.StageStatusFailed {
			switch o.opts.FailureMode {
			case FailFast:
				aborted = true
			case RetryContinue:
				deferred = append(deferred, i)
			}
			continue
		}
		payload = out
		outputs[i] = out
		produced[i] = true
	}

	// Deferred second pass: each collected failure gets one more attempt
	// after every stage has been visited once.
	for _, i := range deferred {
		se := &exec.Stages[i]
		log.Info("orchestrator: deferred retry", zap.String("stage", se.Stage))

		var in any
		for j := i - 1; j >= 0; j-- {
			if produced[j] {
				in = outputs[j]
				break
			}
		}

		out := o.runStage(ctx, stages[i].stage, se, exec, in, 1)
		if se.Status == model.StageStatusSuccess {
			outputs[i] = out
			produced[i] = true
		}
	}

	exec.EndedAt = time.Now().UTC()
	exec.Status = classify(o.opts.FailureMode, exec)

	o.ledger.Append(exec)
	o.notify(exec, log)

	log.Info("orchestrator: run complete",
		zap.String("status", string(exec.Status)),
		zap.Duration("duration", exec.EndedAt.Sub(exec.StartedAt)),
	)
	return exec, nil
}

// runStage wraps one stage invocation with timeout and retry accounting.
// On success it returns the stage's output for chaining into the next stage.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, se *model.StageExecution, exec *model.PipelineExecution, payload any, attempts int) any {
	se.Status = model.StageStatusRunning
	se.StartedAt = time.Now().UTC()

	in := &StageInput{
		ExecutionID: exec.ID,
		TriggeredBy: exec.TriggeredBy,
		Payload:     payload,
	}

	cfg := resilience.RetryConfig{
		MaxAttempts: attempts,
		Delay:       o.opts.RetryDelay,
		OnRetry: func(attempt int, err error) {
			se.RetryCount++
			zap.L().Warn("orchestrator: retrying stage",
				zap.String("stage", stage.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	}

	result, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*StageResult, error) {
		return o.await(ctx, stage, in)
	})

	se.EndedAt = time.Now().UTC()

	if err != nil {
		se.Status = model.StageStatusFailed
		se.Error = err.Error()
		zap.L().Error("orchestrator: stage failed",
			zap.String("stage", stage.Name()),
			zap.Int("retries", se.RetryCount),
			zap.Error(err),
		)
		return nil
	}

	se.Status = model.StageStatusSuccess
	if result != nil {
		se.RecordsProcessed = result.RecordsProcessed
		if len(result.Errors) > 0 {
			zap.L().Warn("orchestrator: stage reported non-fatal errors",
				zap.String("stage", stage.Name()),
				zap.Strings("errors", result.Errors),
			)
		}
		return result.Output
	}
	return nil
}

// await blocks until the stage returns or the per-stage timeout elapses.
// A timeout does not cancel work the stage has already started; the late
// result is simply discarded.
func (o *Orchestrator) await(ctx context.Context, stage Stage, in *StageInput) (*StageResult, error) {
	type outcome struct {
		res *StageResult
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: resilience.NewPermanentError(eris.Errorf("stage %s panicked: %v", stage.Name(), r))}
			}
		}()
		res, err := stage.Execute(ctx, in)
		ch <- outcome{res: res, err: err}
	}()

	if o.opts.StageTimeout <= 0 {
		out := <-ch
		return out.res, out.err
	}

	timer := time.NewTimer(o.opts.StageTimeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, resilience.NewTransientError(
			eris.Errorf("stage %s timed out after %s", stage.Name(), o.opts.StageTimeout))
	}
}

func (o *Orchestrator) notify(exec *model.PipelineExecution, log *zap.Logger) {
	if o.opts.Notify == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("orchestrator: notification callback panicked", zap.Any("panic", r))
		}
	}()
	o.opts.Notify(exec, Classification(exec.Status))
}

// Classification maps an aggregate status to the notification taxonomy.
func Classification(status model.ExecutionStatus) string {
	switch status {
	case model.ExecutionStatusSuccess:
		return "success"
	case model.ExecutionStatusPartial:
		return "partial"
	default:
		return "failure"
	}
}

// classify derives the aggregate status from the stage statuses and the
// active failure mode.
func classify(mode FailureMode, exec *model.PipelineExecution) model.ExecutionStatus {
	succeeded, failed, _ := exec.StageCounts()

	switch {
	case failed == 0:
		return model.ExecutionStatusSuccess
	case mode == FailFast:
		return model.ExecutionStatusFailed
	case succeeded > 0:
		return model.ExecutionStatusPartial
	default:
		return model.ExecutionStatusFailed
	}
}
