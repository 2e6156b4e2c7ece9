package orchestrator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/draftiq/scoutsync/internal/model"
)

func makeExec(id string, status model.ExecutionStatus, stages ...model.StageExecution) *model.PipelineExecution {
	return &model.PipelineExecution{
		ID:     id,
		Status: status,
		Stages: stages,
	}
}

func TestLedger_BoundedEviction(t *testing.T) {
	l := NewLedger(3)
	for i := 0; i < 5; i++ {
		l.Append(makeExec(fmt.Sprintf("e%d", i), model.ExecutionStatusSuccess))
	}

	assert.Equal(t, 3, l.Len())
	last := l.LastN(10)
	assert.Len(t, last, 3)
	// Newest first; the two oldest were evicted.
	assert.Equal(t, "e4", last[0].ID)
	assert.Equal(t, "e2", last[2].ID)
}

func TestLedger_LastN(t *testing.T) {
	l := NewLedger(10)
	l.Append(makeExec("a", model.ExecutionStatusSuccess))
	l.Append(makeExec("b", model.ExecutionStatusFailed))

	last := l.LastN(1)
	assert.Len(t, last, 1)
	assert.Equal(t, "b", last[0].ID)

	assert.Empty(t, NewLedger(5).LastN(3))
}

func TestLedger_SuccessRate(t *testing.T) {
	l := NewLedger(10)
	assert.Zero(t, l.SuccessRate())

	l.Append(makeExec("a", model.ExecutionStatusSuccess))
	l.Append(makeExec("b", model.ExecutionStatusPartial))
	l.Append(makeExec("c", model.ExecutionStatusFailed))
	l.Append(makeExec("d", model.ExecutionStatusSuccess))

	assert.InDelta(t, 0.5, l.SuccessRate(), 1e-9)
}

func TestLedger_Health(t *testing.T) {
	now := time.Now().UTC()
	stage := func(name string, status model.StageStatus, records int, dur time.Duration) model.StageExecution {
		return model.StageExecution{
			Stage:            name,
			Status:           status,
			StartedAt:        now,
			EndedAt:          now.Add(dur),
			RecordsProcessed: records,
		}
	}

	l := NewLedger(10)
	l.Append(makeExec("a", model.ExecutionStatusSuccess,
		stage("collect", model.StageStatusSuccess, 10, 100*time.Millisecond),
	))
	l.Append(makeExec("b", model.ExecutionStatusFailed,
		stage("collect", model.StageStatusFailed, 0, 300*time.Millisecond),
	))
	l.Append(makeExec("c", model.ExecutionStatusSuccess,
		stage("collect", model.StageStatusSkipped, 0, 0),
	))

	h := l.Health()["collect"]
	assert.Equal(t, 2, h.Runs)
	assert.Equal(t, 1, h.Successes)
	assert.Equal(t, 1, h.Failures)
	assert.InDelta(t, 0.5, h.SuccessRate, 1e-9)
	assert.Equal(t, 10, h.TotalRecords)
	assert.Equal(t, 200*time.Millisecond, h.AvgDuration)
}
