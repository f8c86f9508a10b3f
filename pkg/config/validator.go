package config

import (
	"fmt"
	"os"
)

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error).
func (v *Validator) ValidateAll() error {
	if !v.cfg.Environment.IsValid() {
		return fmt.Errorf("invalid environment: %s", v.cfg.Environment)
	}

	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}
	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}
	if err := v.validateMatching(); err != nil {
		return fmt.Errorf("matching validation failed: %w", err)
	}
	if err := v.validateConfidence(); err != nil {
		return fmt.Errorf("confidence validation failed: %w", err)
	}
	if err := v.validateBudget(); err != nil {
		return fmt.Errorf("budget validation failed: %w", err)
	}
	if err := v.validateBreaker(); err != nil {
		return fmt.Errorf("circuit breaker validation failed: %w", err)
	}
	if err := v.validateWebhook(); err != nil {
		return fmt.Errorf("webhook validation failed: %w", err)
	}
	if err := v.validateNotification(); err != nil {
		return fmt.Errorf("notification validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}

	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount)
	}
	if q.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max_concurrent_jobs must be at least 1, got %d", q.MaxConcurrentJobs)
	}
	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", q.PollInterval)
	}
	if q.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", q.PollIntervalJitter)
	}
	if q.PollIntervalJitter >= q.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval, got jitter=%v interval=%v", q.PollIntervalJitter, q.PollInterval)
	}
	if q.JobTimeout <= 0 {
		return fmt.Errorf("job_timeout must be positive, got %v", q.JobTimeout)
	}
	if q.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", q.GracefulShutdownTimeout)
	}
	if q.OrphanDetectionInterval <= 0 {
		return fmt.Errorf("orphan_detection_interval must be positive, got %v", q.OrphanDetectionInterval)
	}
	if q.OrphanThreshold <= 0 {
		return fmt.Errorf("orphan_threshold must be positive, got %v", q.OrphanThreshold)
	}
	if q.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %v", q.HeartbeatInterval)
	}
	if q.HeartbeatInterval >= q.OrphanThreshold {
		return fmt.Errorf("heartbeat_interval must be less than orphan_threshold to prevent false orphan detection, got heartbeat=%v threshold=%v", q.HeartbeatInterval, q.OrphanThreshold)
	}

	return nil
}

func (v *Validator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return fmt.Errorf("retention configuration is nil")
	}
	if r.IdempotencyKeyTTL <= 0 {
		return NewValidationError("retention", "idempotency_key_ttl", fmt.Errorf("must be positive"))
	}
	if r.OutboxRetention <= 0 {
		return NewValidationError("retention", "outbox_retention", fmt.Errorf("must be positive"))
	}
	if r.RawMetricRetention <= 0 {
		return NewValidationError("retention", "raw_metric_retention", fmt.Errorf("must be positive"))
	}
	if r.StaleProcessingThreshold <= 0 {
		return NewValidationError("retention", "stale_processing_threshold", fmt.Errorf("must be positive"))
	}
	if r.CleanupInterval <= 0 {
		return NewValidationError("retention", "cleanup_interval", fmt.Errorf("must be positive"))
	}
	return nil
}

func (v *Validator) validateMatching() error {
	m := v.cfg.Matching
	if m == nil {
		return fmt.Errorf("matching configuration is nil")
	}
	if m.LookbackDays < 1 {
		return NewValidationError("matching", "lookback_days", fmt.Errorf("must be at least 1"))
	}
	if m.MinMatch < 0 || m.MinMatch > 1 {
		return NewValidationError("matching", "min_match", fmt.Errorf("must be between 0 and 1"))
	}
	if m.GapThreshold < 0 || m.GapThreshold > 1 {
		return NewValidationError("matching", "gap_threshold", fmt.Errorf("must be between 0 and 1"))
	}
	if m.NameOnlyOverride < m.MinMatch {
		return NewValidationError("matching", "name_only_override", fmt.Errorf("must be >= min_match"))
	}
	return nil
}

func (v *Validator) validateConfidence() error {
	c := v.cfg.Confidence
	if c == nil {
		return fmt.Errorf("confidence configuration is nil")
	}
	if c.HighThreshold <= c.LowThreshold {
		return NewValidationError("confidence", "high_threshold", fmt.Errorf("must be greater than low_threshold"))
	}
	if c.LowThreshold < 0 || c.HighThreshold > 1 {
		return NewValidationError("confidence", "thresholds", fmt.Errorf("must fall within [0,1]"))
	}
	return nil
}

func (v *Validator) validateBudget() error {
	b := v.cfg.Budget
	if b == nil {
		return fmt.Errorf("budget configuration is nil")
	}
	if b.MaxTokensPerJob < 1 {
		return NewValidationError("budget", "max_tokens_per_job", fmt.Errorf("must be at least 1"))
	}
	if b.DailyCostLimitUSD <= 0 {
		return NewValidationError("budget", "daily_cost_limit_usd", fmt.Errorf("must be positive"))
	}
	if b.InputCostPerMillionUSD < 0 || b.OutputCostPerMillionUSD < 0 {
		return NewValidationError("budget", "cost_per_million", fmt.Errorf("must be non-negative"))
	}
	return nil
}

func (v *Validator) validateBreaker() error {
	b := v.cfg.Breaker
	if b == nil {
		return fmt.Errorf("circuit breaker configuration is nil")
	}
	if b.FailMax < 1 {
		return NewValidationError("circuit_breaker", "fail_max", fmt.Errorf("must be at least 1"))
	}
	if b.ResetTimeoutS <= 0 {
		return NewValidationError("circuit_breaker", "reset_timeout_seconds", fmt.Errorf("must be positive"))
	}
	return nil
}

func (v *Validator) validateWebhook() error {
	w := v.cfg.Webhook
	if w == nil {
		return fmt.Errorf("webhook configuration is nil")
	}
	if w.SecretEnv == "" {
		return NewValidationError("webhook", "secret_env", fmt.Errorf("required"))
	}
	if os.Getenv(w.SecretEnv) == "" {
		return NewValidationError("webhook", "secret_env", fmt.Errorf("environment variable %s is not set", w.SecretEnv))
	}
	if w.TimestampToleranceSeconds < 1 {
		return NewValidationError("webhook", "timestamp_tolerance_seconds", fmt.Errorf("must be at least 1"))
	}
	return nil
}

func (v *Validator) validateNotification() error {
	n := v.cfg.Notification
	if n == nil {
		return fmt.Errorf("notification configuration is nil")
	}
	if n.SMTPPort < 1 || n.SMTPPort > 65535 {
		return NewValidationError("notification", "smtp_port", fmt.Errorf("must be a valid TCP port"))
	}
	return nil
}
