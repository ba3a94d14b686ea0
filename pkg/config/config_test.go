package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultValidates verifies the shipped defaults pass validation.
func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

// TestValidateRejections verifies each guard independently.
func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "zero churn threshold",
			mutate: func(c *Config) { c.ChurnThresholdDays = 0 },
			field:  "churn_threshold_days",
		},
		{
			name:   "drop rate above one",
			mutate: func(c *Config) { c.MaxDropRate = 1.5 },
			field:  "max_drop_rate",
		},
		{
			name:   "no workers",
			mutate: func(c *Config) { c.Workers = 0 },
			field:  "workers",
		},
		{
			name:   "zero stage timeout",
			mutate: func(c *Config) { c.StageTimeout = 0 },
			field:  "stage_timeout",
		},
		{
			name:   "non-increasing recency boundaries",
			mutate: func(c *Config) { c.RFM.RecencyDays = [4]int{30, 30, 90, 180} },
			field:  "rfm.recency_days",
		},
		{
			name:   "non-decreasing order count boundaries",
			mutate: func(c *Config) { c.RFM.OrderCounts = [4]int64{5, 7, 5, 2} },
			field:  "rfm.order_counts",
		},
		{
			name:   "non-decreasing lifetime value boundaries",
			mutate: func(c *Config) { c.RFM.LifetimeValue = [4]float64{1000, 1000, 500, 250} },
			field:  "rfm.lifetime_value",
		},
		{
			name:   "correlation floor above one",
			mutate: func(c *Config) { c.MinCorrelation = 1.2 },
			field:  "min_correlation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var confErr *ConfigurationError
			require.ErrorAs(t, err, &confErr)
			assert.Equal(t, tt.field, confErr.Field)
		})
	}
}

// TestLoadProfileAndEnv verifies the defaults, YAML profile, env override
// layering.
func TestLoadProfileAndEnv(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "featurex.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("database_name: featurex_test\nchurn_threshold_days: 120\n"), 0o644))

	t.Setenv("FEATUREX_CONFIG", profile)
	t.Setenv("PIPELINE_WORKERS", "3")
	t.Setenv("STAGE_TIMEOUT", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "featurex_test", cfg.DatabaseName)
	assert.Equal(t, 120, cfg.ChurnThresholdDays)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 5*time.Minute, cfg.StageTimeout)
	// Untouched values keep their defaults.
	assert.InDelta(t, 0.05, cfg.MaxDropRate, 1e-9)
}

// TestLoadRejectsBrokenProfile verifies an unreadable profile fails fast.
func TestLoadRejectsBrokenProfile(t *testing.T) {
	t.Setenv("FEATUREX_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
}
