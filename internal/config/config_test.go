package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.60, cfg.Match.NameWeight)
	assert.Equal(t, 0.25, cfg.Match.PositionWeight)
	assert.Equal(t, 0.15, cfg.Match.SchoolWeight)
	assert.Equal(t, 90.0, cfg.Match.HighThreshold)
	assert.Equal(t, 75.0, cfg.Match.LowThreshold)

	assert.Equal(t, 0.95, cfg.Quality.PassCompleteness)
	assert.Equal(t, 0.85, cfg.Quality.WarnCompleteness)

	assert.Equal(t, 500, cfg.Pipeline.BatchSize)
	assert.Equal(t, 50, cfg.Pipeline.HistorySize)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.SoftDeadline())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "prospect-etl/1.0", cfg.Stage.UserAgent)
	assert.Equal(t, "prospect-etl.db", cfg.Store.ArchivePath)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PROSPECT_MATCH_HIGH_THRESHOLD", "95")
	t.Setenv("PROSPECT_STORE_DATABASE_URL", "postgres://localhost/draft")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 95.0, cfg.Match.HighThreshold)
	assert.Equal(t, "postgres://localhost/draft", cfg.Store.DatabaseURL)
}

func TestSoftDeadline_Disabled(t *testing.T) {
	var p PipelineConfig
	assert.Equal(t, time.Duration(0), p.SoftDeadline())
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouty", Format: "json"})
	assert.Error(t, err)
}
