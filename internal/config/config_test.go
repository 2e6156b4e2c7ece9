package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "scoutsync.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "fail_fast", cfg.Pipeline.FailureMode)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 50, cfg.Pipeline.HistorySize)
	assert.Equal(t, 0.85, cfg.Reconcile.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Quality.MinSampleSize)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.25, cfg.Monitoring.FailureRateThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
store:
  driver: postgres
  database_url: postgres://localhost/scoutsync
pipeline:
  failure_mode: retry_continue
  max_retries: 5
sources:
  - name: combine
    type: xlsx
    path: drops/combine.xlsx
    sheet: Measurements
  - name: scout_notes
    type: csv
    path: drops/notes.csv
    rate_limit: 2.5
monitoring:
  webhook_url: https://hooks.example.com/alerts
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "retry_continue", cfg.Pipeline.FailureMode)
	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	// Unset keys keep their defaults.
	assert.Equal(t, 2, cfg.Pipeline.RetryDelaySecs)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "combine", cfg.Sources[0].Name)
	assert.Equal(t, "Measurements", cfg.Sources[0].Sheet)
	assert.Equal(t, 2.5, cfg.Sources[1].RateLimit)
	assert.Equal(t, "https://hooks.example.com/alerts", cfg.Monitoring.WebhookURL)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouty", Format: "json"})
	require.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
