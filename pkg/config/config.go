package config

import (
	"fmt"
	"os"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/retry"
	"github.com/vyaparbazaar/featurex/pkg/utils"
	"gopkg.in/yaml.v3"
)

// ConfigurationError is fatal: the pipeline refuses to start, before any
// writes occur.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// RFMBounds holds the bucket boundaries for recency/frequency/monetary
// scoring. Each slice is evaluated in order; the first boundary the value
// clears wins, descending from score 5 to score 2, else score 1.
type RFMBounds struct {
	RecencyDays   [4]int     `yaml:"recency_days"`   // <=30d:5 <=60d:4 <=90d:3 <=180d:2
	OrderCounts   [4]int64   `yaml:"order_counts"`   // >=10:5 >=7:4 >=5:3 >=2:2
	LifetimeValue [4]float64 `yaml:"lifetime_value"` // >=1000:5 >=750:4 >=500:3 >=250:2
}

// Config carries every tunable the pipeline exposes. Values come from the
// environment with an optional YAML profile file layered underneath.
type Config struct {
	DatabaseName  string `yaml:"database_name"`
	SchemaVersion uint32 `yaml:"schema_version"`

	ChurnThresholdDays int       `yaml:"churn_threshold_days"`
	RFM                RFMBounds `yaml:"rfm"`

	// MaxDropRate is the malformed-row fraction above which a staging run
	// fails instead of propagating a partial batch.
	MaxDropRate float64 `yaml:"max_drop_rate"`

	// Validation thresholds for ML feature tables.
	MinVariance    float64 `yaml:"min_variance"`
	MinCorrelation float64 `yaml:"min_correlation"`

	StageTimeout time.Duration `yaml:"stage_timeout"`
	Retry        retry.Policy  `yaml:"retry"`

	// Workers bounds the per-stage pool; partitions of the affected-key set
	// are disjoint so no two workers ever write the same entity.
	Workers int `yaml:"workers"`

	ListenAddr  string `yaml:"listen_addr"`
	AdminSecret string `yaml:"admin_secret"`
	CronSpec    string `yaml:"cron_spec"`
}

// Default returns the documented defaults. RFM boundaries follow the
// business rules for the VyaparBazaar customer base.
func Default() *Config {
	return &Config{
		DatabaseName:       "featurex",
		SchemaVersion:      1,
		ChurnThresholdDays: 90,
		RFM: RFMBounds{
			RecencyDays:   [4]int{30, 60, 90, 180},
			OrderCounts:   [4]int64{10, 7, 5, 2},
			LifetimeValue: [4]float64{1000, 750, 500, 250},
		},
		MaxDropRate:    0.05,
		MinVariance:    1e-6,
		MinCorrelation: 0.01,
		StageTimeout:   15 * time.Minute,
		Retry:          retry.DefaultPolicy(),
		Workers:        8,
		ListenAddr:     ":8080",
		CronSpec:       "*/15 * * * *",
	}
}

// Load builds the effective configuration: defaults, then the YAML profile
// named by FEATUREX_CONFIG (if any), then environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("FEATUREX_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigurationError{Field: "FEATUREX_CONFIG", Reason: err.Error()}
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, &ConfigurationError{Field: "FEATUREX_CONFIG", Reason: fmt.Sprintf("parse %s: %v", path, err)}
		}
	}

	cfg.DatabaseName = utils.Env("FEATUREX_DB", cfg.DatabaseName)
	cfg.ChurnThresholdDays = utils.EnvInt("CHURN_THRESHOLD_DAYS", cfg.ChurnThresholdDays)
	cfg.MaxDropRate = utils.EnvFloat("MAX_DROP_RATE", cfg.MaxDropRate)
	cfg.MinVariance = utils.EnvFloat("MIN_VARIANCE", cfg.MinVariance)
	cfg.MinCorrelation = utils.EnvFloat("MIN_CORRELATION", cfg.MinCorrelation)
	cfg.StageTimeout = utils.EnvDuration("STAGE_TIMEOUT", cfg.StageTimeout)
	cfg.Workers = utils.EnvInt("PIPELINE_WORKERS", cfg.Workers)
	cfg.ListenAddr = utils.Env("LISTEN_ADDR", cfg.ListenAddr)
	cfg.AdminSecret = utils.Env("ADMIN_SECRET", cfg.AdminSecret)
	cfg.CronSpec = utils.Env("PIPELINE_CRON", cfg.CronSpec)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that could corrupt a run. Called before
// any store is touched.
func (c *Config) Validate() error {
	if c.ChurnThresholdDays <= 0 {
		return &ConfigurationError{Field: "churn_threshold_days", Reason: "must be positive"}
	}
	if c.MaxDropRate < 0 || c.MaxDropRate > 1 {
		return &ConfigurationError{Field: "max_drop_rate", Reason: "must be within [0,1]"}
	}
	if c.Workers <= 0 {
		return &ConfigurationError{Field: "workers", Reason: "must be positive"}
	}
	if c.StageTimeout <= 0 {
		return &ConfigurationError{Field: "stage_timeout", Reason: "must be positive"}
	}
	for i := 1; i < len(c.RFM.RecencyDays); i++ {
		if c.RFM.RecencyDays[i] <= c.RFM.RecencyDays[i-1] {
			return &ConfigurationError{Field: "rfm.recency_days", Reason: "boundaries must be strictly increasing"}
		}
	}
	for i := 1; i < len(c.RFM.OrderCounts); i++ {
		if c.RFM.OrderCounts[i] >= c.RFM.OrderCounts[i-1] {
			return &ConfigurationError{Field: "rfm.order_counts", Reason: "boundaries must be strictly decreasing"}
		}
	}
	for i := 1; i < len(c.RFM.LifetimeValue); i++ {
		if c.RFM.LifetimeValue[i] >= c.RFM.LifetimeValue[i-1] {
			return &ConfigurationError{Field: "rfm.lifetime_value", Reason: "boundaries must be strictly decreasing"}
		}
	}
	if c.MinVariance < 0 {
		return &ConfigurationError{Field: "min_variance", Reason: "must be non-negative"}
	}
	if c.MinCorrelation < 0 || c.MinCorrelation > 1 {
		return &ConfigurationError{Field: "min_correlation", Reason: "must be within [0,1]"}
	}
	return nil
}
