// Package config holds the runtime configuration for lanegate.
// Field tags use mapstructure for viper unmarshalling.
package config

import "errors"

// Config is the top-level configuration struct.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Git       GitConfig       `mapstructure:"git"`
	Staleness StalenessConfig `mapstructure:"staleness"`
	Lock      LockConfig      `mapstructure:"lock"`
}

// PipelineConfig holds scan pipeline resource knobs.
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// GitConfig holds git subprocess settings.
type GitConfig struct {
	TimeoutMS         int `mapstructure:"timeout_ms"`
	ExternalTimeoutMS int `mapstructure:"external_timeout_ms"`
}

// StalenessConfig holds the grace thresholds separating soft from hard
// staleness.
type StalenessConfig struct {
	SoftWindowHours int `mapstructure:"soft_window_hours"`
	SoftMaxMerges   int `mapstructure:"soft_max_merges"`
}

// LockConfig holds file-lock settings.
type LockConfig struct {
	StaleMinutes int `mapstructure:"stale_minutes"`
}

// Configuration defaults.
const (
	// DefaultWorkers is the default scan concurrency.
	DefaultWorkers = 4
	// DefaultGitTimeoutMS bounds one git invocation.
	DefaultGitTimeoutMS = 30000
	// DefaultExternalTimeoutMS bounds external-knowledge and gh calls.
	DefaultExternalTimeoutMS = 20000
	// DefaultSoftWindowHours is the soft-staleness grace window.
	DefaultSoftWindowHours = 24
	// DefaultSoftMaxMerges is the merge count tolerated as soft staleness.
	DefaultSoftMaxMerges = 3
	// DefaultLockStaleMinutes is the orchestrate-lock takeover threshold.
	DefaultLockStaleMinutes = 30
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("pipeline.workers must be >= 0")
	// ErrInvalidTimeout indicates a non-positive timeout.
	ErrInvalidTimeout = errors.New("git timeouts must be > 0")
	// ErrInvalidGrace indicates a negative staleness grace value.
	ErrInvalidGrace = errors.New("staleness grace values must be >= 0")
	// ErrInvalidLockStale indicates a non-positive lock stale threshold.
	ErrInvalidLockStale = errors.New("lock.stale_minutes must be > 0")
)

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Git.TimeoutMS <= 0 || c.Git.ExternalTimeoutMS <= 0 {
		return ErrInvalidTimeout
	}

	if c.Staleness.SoftWindowHours < 0 || c.Staleness.SoftMaxMerges < 0 {
		return ErrInvalidGrace
	}

	if c.Lock.StaleMinutes <= 0 {
		return ErrInvalidLockStale
	}

	return nil
}
