package config

// Config is the umbrella configuration object assembled by Initialize().
// It is the single object threaded through main.go into every component
// that needs tunable behavior: the worker pool, the matching engine, the
// confidence router, the budget tracker, and the outbound notifiers.
type Config struct {
	configDir string // Configuration directory path (for reference)

	Environment Environment

	Queue        *QueueConfig
	Retention    *RetentionConfig
	Matching     *MatchingConfig
	Confidence   *ConfidenceConfig
	Budget       *BudgetConfig
	Breaker      *CircuitBreakerConfig
	Webhook      *WebhookConfig
	Notification *NotificationConfig
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}
