package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftiq/scoutsync/internal/orchestrator"
)

func TestFormatStageHealth(t *testing.T) {
	health := map[string]orchestrator.StageHealth{
		"reconcile": {
			Stage: "reconcile", Runs: 4, Successes: 3, Failures: 1,
			SuccessRate: 0.75, AvgDuration: 250 * time.Millisecond, TotalRecords: 40,
		},
		"collect": {
			Stage: "collect", Runs: 4, Successes: 4,
			SuccessRate: 1.0, AvgDuration: time.Second, TotalRecords: 120,
		},
	}

	var buf bytes.Buffer
	formatStageHealth(&buf, health)
	out := buf.String()

	// Stages are listed alphabetically.
	require.Less(t, strings.Index(out, "collect"), strings.Index(out, "reconcile"))
	assert.Contains(t, out, "75%")
	assert.Contains(t, out, "250ms")
	assert.Contains(t, out, "120")
}
