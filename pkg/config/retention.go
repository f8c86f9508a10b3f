package config

import "time"

// RetentionConfig controls data retention and cleanup behavior across the
// outbox, idempotency, and metrics tables (§7, §9).
type RetentionConfig struct {
	// IdempotencyKeyTTL is how long a cached idempotency result is kept
	// before the cleanup loop deletes it.
	IdempotencyKeyTTL time.Duration `yaml:"idempotency_key_ttl"`

	// OutboxRetention is how long a processed outbox row is kept before
	// deletion, to support post-hoc audit of the saga's Phase B side effects.
	OutboxRetention time.Duration `yaml:"outbox_retention"`

	// RawMetricRetention is how long raw (pre-rollup) metric samples are
	// kept before the daily rollup supersedes them and they are pruned.
	RawMetricRetention time.Duration `yaml:"raw_metric_retention"`

	// StaleProcessingThreshold is how long an inbound message can sit in a
	// non-terminal processing_status before the auditor flags it stuck.
	StaleProcessingThreshold time.Duration `yaml:"stale_processing_threshold"`

	// CleanupInterval is how often the retention sweep loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
// CalibrationSamples are intentionally never pruned by this config: they are
// the permanent ground truth used to recalibrate confidence thresholds.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		IdempotencyKeyTTL:        24 * time.Hour,
		OutboxRetention:          30 * 24 * time.Hour,
		RawMetricRetention:       30 * 24 * time.Hour,
		StaleProcessingThreshold: 24 * time.Hour,
		CleanupInterval:          1 * time.Hour,
	}
}
