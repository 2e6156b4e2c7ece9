package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineExecution_StageCounts(t *testing.T) {
	e := PipelineExecution{Stages: []StageExecution{
		{Stage: "collect", Status: StageStatusSuccess},
		{Stage: "reconcile", Status: StageStatusFailed},
		{Stage: "quality", Status: StageStatusSkipped},
		{Stage: "archive", Status: StageStatusSuccess},
	}}

	succeeded, failed, skipped := e.StageCounts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)
}

func TestPipelineExecution_FailedStage(t *testing.T) {
	e := PipelineExecution{Stages: []StageExecution{
		{Stage: "collect", Status: StageStatusSuccess},
		{Stage: "reconcile", Status: StageStatusFailed},
	}}

	fs := e.FailedStage()
	assert.NotNil(t, fs)
	assert.Equal(t, "reconcile", fs.Stage)

	assert.Nil(t, (&PipelineExecution{}).FailedStage())
}

func TestStageExecution_Duration(t *testing.T) {
	now := time.Now()
	s := StageExecution{StartedAt: now, EndedAt: now.Add(time.Second)}
	assert.Equal(t, time.Second, s.Duration())

	assert.Zero(t, (&StageExecution{}).Duration())
}

func TestViolation_Open(t *testing.T) {
	assert.True(t, (&Violation{Review: ReviewPending}).Open())
	assert.False(t, (&Violation{Review: ReviewApproved}).Open())
	assert.False(t, (&Violation{Review: ReviewDismissed}).Open())
}

func TestConflictRecord_CandidateFor(t *testing.T) {
	cr := ConflictRecord{Candidates: []Candidate{
		{Source: "combine", Value: "74"},
		{Source: "scout_notes", Value: "75"},
	}}

	c, ok := cr.CandidateFor("scout_notes")
	assert.True(t, ok)
	assert.Equal(t, "75", c.Value)

	_, ok = cr.CandidateFor("recruiting_api")
	assert.False(t, ok)
}

func TestRawSourceRecord_Field(t *testing.T) {
	r := RawSourceRecord{Fields: map[string]string{"height": "74"}}

	v, ok := r.Field("height")
	assert.True(t, ok)
	assert.Equal(t, "74", v)

	_, ok = r.Field("weight")
	assert.False(t, ok)
}
