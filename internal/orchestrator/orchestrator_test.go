package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/resilience"
)

// mockStage implements Stage for testing.
type mockStage struct {
	name  string
	fn    func(ctx context.Context, in *StageInput) (*StageResult, error)
	mu    sync.Mutex
	calls int
}

func (m *mockStage) Name() string { return m.name }

func (m *mockStage) Execute(ctx context.Context, in *StageInput) (*StageResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, in)
	}
	return &StageResult{RecordsProcessed: 1}, nil
}

func (m *mockStage) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testOptions(mode FailureMode) Options {
	return Options{
		FailureMode: mode,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
	}
}

func TestRegister_DuplicateOrderRejected(t *testing.T) {
	o := New(testOptions(FailFast))
	require.NoError(t, o.Register(&mockStage{name: "a"}, 10))

	err := o.Register(&mockStage{name: "b"}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position 10")
}

func TestRegister_DuplicateNameRejected(t *testing.T) {
	o := New(testOptions(FailFast))
	require.NoError(t, o.Register(&mockStage{name: "a"}, 10))

	err := o.Register(&mockStage{name: "a"}, 20)
	require.Error(t, err)
}

func TestExecute_OrderedChaining(t *testing.T) {
	var order []string
	s1 := &mockStage{name: "first", fn: func(_ context.Context, in *StageInput) (*StageResult, error) {
		order = append(order, "first")
		assert.Nil(t, in.Payload)
		return &StageResult{Output: "from-first"}, nil
	}}
	s2 := &mockStage{name: "second", fn: func(_ context.Context, in *StageInput) (*StageResult, error) {
		order = append(order, "second")
		assert.Equal(t, "from-first", in.Payload)
		return &StageResult{Output: "from-second"}, nil
	}}

	o := New(testOptions(FailFast))
	// Registration order is irrelevant; execution follows positions.
	require.NoError(t, o.Register(s2, 20))
	require.NoError(t, o.Register(s1, 10))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, model.ExecutionStatusSuccess, exec.Status)
	assert.NotEmpty(t, exec.ID)
	assert.Equal(t, "test", exec.TriggeredBy)
}

func TestExecute_NoStages(t *testing.T) {
	o := New(testOptions(FailFast))
	_, err := o.Execute(context.Background(), "test", nil)
	require.Error(t, err)
}

func TestExecute_FailFastSkipsRemaining(t *testing.T) {
	s1 := &mockStage{name: "ok"}
	s2 := &mockStage{name: "boom", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		return nil, resilience.NewPermanentError(errors.New("bad payload"))
	}}
	s3 := &mockStage{name: "never"}

	o := New(testOptions(FailFast))
	require.NoError(t, o.Register(s1, 10))
	require.NoError(t, o.Register(s2, 20))
	require.NoError(t, o.Register(s3, 30))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusFailed, exec.Status)
	assert.Equal(t, model.StageStatusSuccess, exec.Stages[0].Status)
	assert.Equal(t, model.StageStatusFailed, exec.Stages[1].Status)
	assert.Equal(t, model.StageStatusSkipped, exec.Stages[2].Status)
	assert.Zero(t, s3.callCount())
}

func TestExecute_PartialSuccessContinues(t *testing.T) {
	s1 := &mockStage{name: "ok", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		return &StageResult{Output: "data"}, nil
	}}
	s2 := &mockStage{name: "boom", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		return nil, resilience.NewPermanentError(errors.New("broken"))
	}}
	var s3Payload any
	s3 := &mockStage{name: "after", fn: func(_ context.Context, in *StageInput) (*StageResult, error) {
		s3Payload = in.Payload
		return &StageResult{}, nil
	}}

	o := New(testOptions(PartialSuccess))
	require.NoError(t, o.Register(s1, 10))
	require.NoError(t, o.Register(s2, 20))
	require.NoError(t, o.Register(s3, 30))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusPartial, exec.Status)
	assert.Equal(t, 1, s3.callCount())
	// Failed stage contributes no output; the last good payload flows on.
	assert.Equal(t, "data", s3Payload)
}

func TestExecute_RetryContinueDeferredPass(t *testing.T) {
	var attempts int
	flaky := &mockStage{name: "flaky", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		attempts++
		if attempts <= 3 {
			return nil, resilience.NewPermanentError(errors.New("not yet"))
		}
		return &StageResult{Output: "late"}, nil
	}}
	after := &mockStage{name: "after"}

	o := New(testOptions(RetryContinue))
	require.NoError(t, o.Register(flaky, 10))
	require.NoError(t, o.Register(after, 20))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)

	// Permanent error burns one attempt in the first pass, then the
	// deferred pass gets exactly one more. Second pass at attempt 2 still
	// fails, so this run ends partial.
	assert.Equal(t, 2, attempts)
	assert.Equal(t, model.ExecutionStatusPartial, exec.Status)
	assert.Equal(t, model.StageStatusFailed, exec.Stages[0].Status)
	assert.Equal(t, model.StageStatusSuccess, exec.Stages[1].Status)
}

func TestExecute_DeferredRetryReplaysPredecessorOutput(t *testing.T) {
	first := &mockStage{name: "first", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		return &StageResult{Output: "a-out"}, nil
	}}
	var middleInputs []any
	middle := &mockStage{name: "middle", fn: func(_ context.Context, in *StageInput) (*StageResult, error) {
		middleInputs = append(middleInputs, in.Payload)
		return nil, resilience.NewPermanentError(errors.New("needs a-out"))
	}}
	last := &mockStage{name: "last", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		return &StageResult{Output: "c-out"}, nil
	}}

	o := New(testOptions(RetryContinue))
	require.NoError(t, o.Register(first, 10))
	require.NoError(t, o.Register(middle, 20))
	require.NoError(t, o.Register(last, 30))

	_, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)

	// The deferred retry gets the same input the stage saw in the first
	// pass, not the output of whatever ran after it.
	require.Len(t, middleInputs, 2)
	assert.Equal(t, "a-out", middleInputs[0])
	assert.Equal(t, "a-out", middleInputs[1])
}

func TestExecute_DeferredRetriesChainOutputs(t *testing.T) {
	first := &mockStage{name: "first", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		return &StageResult{Output: "a-out"}, nil
	}}
	var middleCalls int
	middle := &mockStage{name: "middle", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		middleCalls++
		if middleCalls == 1 {
			return nil, resilience.NewPermanentError(errors.New("first pass fails"))
		}
		return &StageResult{Output: "b-out"}, nil
	}}
	var lastInputs []any
	last := &mockStage{name: "last", fn: func(_ context.Context, in *StageInput) (*StageResult, error) {
		lastInputs = append(lastInputs, in.Payload)
		return nil, resilience.NewPermanentError(errors.New("always fails first"))
	}}

	o := New(testOptions(RetryContinue))
	require.NoError(t, o.Register(first, 10))
	require.NoError(t, o.Register(middle, 20))
	require.NoError(t, o.Register(last, 30))

	_, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)

	// First pass: middle failed, so last saw first's output. Deferred pass:
	// middle recovered, so last's retry sees middle's output.
	require.Len(t, lastInputs, 2)
	assert.Equal(t, "a-out", lastInputs[0])
	assert.Equal(t, "b-out", lastInputs[1])
}

func TestExecute_RetryContinueRecovers(t *testing.T) {
	var attempts int
	flaky := &mockStage{name: "flaky", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		attempts++
		if attempts == 1 {
			return nil, resilience.NewPermanentError(errors.New("first pass fails"))
		}
		return &StageResult{}, nil
	}}

	o := New(testOptions(RetryContinue))
	require.NoError(t, o.Register(flaky, 10))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, model.ExecutionStatusSuccess, exec.Status)
}

func TestExecute_TransientRetryCount(t *testing.T) {
	var attempts int
	s := &mockStage{name: "flaky", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		attempts++
		if attempts < 3 {
			return nil, resilience.NewTransientError(errors.New("timeout"))
		}
		return &StageResult{}, nil
	}}

	o := New(testOptions(FailFast))
	require.NoError(t, o.Register(s, 10))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)

	assert.Equal(t, model.StageStatusSuccess, exec.Stages[0].Status)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, exec.Stages[0].RetryCount)
}

func TestExecute_PermanentErrorNotRetried(t *testing.T) {
	s := &mockStage{name: "bad", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		return nil, resilience.NewPermanentError(errors.New("schema mismatch"))
	}}

	o := New(testOptions(FailFast))
	require.NoError(t, o.Register(s, 10))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, s.callCount())
	assert.Equal(t, 0, exec.Stages[0].RetryCount)
	assert.Contains(t, exec.Stages[0].Error, "schema mismatch")
}

func TestExecute_StageTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := &mockStage{name: "slow", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		<-release
		return &StageResult{}, nil
	}}

	opts := testOptions(FailFast)
	opts.MaxRetries = 1
	opts.StageTimeout = 20 * time.Millisecond
	o := New(opts)
	require.NoError(t, o.Register(slow, 10))

	exec, err := o.Execute(context.Background(), "test", nil)
	close(release)
	require.NoError(t, err)

	assert.Equal(t, model.StageStatusFailed, exec.Stages[0].Status)
	assert.Contains(t, exec.Stages[0].Error, "timed out")
}

func TestExecute_StagePanicIsPermanent(t *testing.T) {
	s := &mockStage{name: "panics", fn: func(_ context.Context, _ *StageInput) (*StageResult, error) {
		panic("nil map write")
	}}

	o := New(testOptions(FailFast))
	require.NoError(t, o.Register(s, 10))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, s.callCount())
	assert.Equal(t, model.StageStatusFailed, exec.Stages[0].Status)
	assert.Contains(t, exec.Stages[0].Error, "panicked")
}

func TestExecute_SkipSet(t *testing.T) {
	s1 := &mockStage{name: "collect"}
	s2 := &mockStage{name: "archive"}

	o := New(testOptions(FailFast))
	require.NoError(t, o.Register(s1, 10))
	require.NoError(t, o.Register(s2, 20))

	exec, err := o.Execute(context.Background(), "test", map[string]bool{"archive": true})
	require.NoError(t, err)

	assert.Zero(t, s2.callCount())
	assert.Equal(t, model.StageStatusSkipped, exec.Stages[1].Status)
	// Skipped stages never count against the aggregate outcome.
	assert.Equal(t, model.ExecutionStatusSuccess, exec.Status)
}

func TestExecute_NotifyReceivesClassification(t *testing.T) {
	var gotClass string
	var gotExec *model.PipelineExecution

	opts := testOptions(FailFast)
	opts.Notify = func(exec *model.PipelineExecution, classification string) {
		gotExec = exec
		gotClass = classification
	}
	o := New(opts)
	require.NoError(t, o.Register(&mockStage{name: "ok"}, 10))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)
	require.NotNil(t, gotExec)
	assert.Equal(t, exec.ID, gotExec.ID)
	assert.Equal(t, "success", gotClass)
}

func TestExecute_NotifyPanicDoesNotAffectOutcome(t *testing.T) {
	opts := testOptions(FailFast)
	opts.Notify = func(*model.PipelineExecution, string) {
		panic("webhook exploded")
	}
	o := New(opts)
	require.NoError(t, o.Register(&mockStage{name: "ok"}, 10))

	exec, err := o.Execute(context.Background(), "test", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusSuccess, exec.Status)
}

func TestClassification(t *testing.T) {
	assert.Equal(t, "success", Classification(model.ExecutionStatusSuccess))
	assert.Equal(t, "partial", Classification(model.ExecutionStatusPartial))
	assert.Equal(t, "failure", Classification(model.ExecutionStatusFailed))
}

func TestParseFailureMode(t *testing.T) {
	for _, s := range []string{"fail_fast", "partial_success", "retry_continue"} {
		_, err := ParseFailureMode(s)
		assert.NoError(t, err)
	}
	_, err := ParseFailureMode("explode")
	assert.Error(t, err)
}
