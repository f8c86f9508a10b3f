package config

// DefaultMatchingConfig returns the built-in defaults of the matching config
// section (§4.7); the matching engine itself does not read these values.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		LookbackDays:          30,
		MinMatch:              0.70,
		GapThreshold:          0.15,
		WeightClientName:      0.35,
		WeightReferenceNumber: 0.30,
		NameOnlyOverride:      0.90,
	}
}

// DefaultConfidenceConfig returns the built-in confidence router tier boundaries (§4.8).
func DefaultConfidenceConfig() *ConfidenceConfig {
	return &ConfidenceConfig{
		HighThreshold: 0.85,
		LowThreshold:  0.60,
	}
}

// DefaultBudgetConfig returns the built-in per-job budget and daily breaker defaults (§4.3).
func DefaultBudgetConfig() *BudgetConfig {
	return &BudgetConfig{
		MaxTokensPerJob:         100_000,
		DailyCostLimitUSD:       50.0,
		InputCostPerMillionUSD:  3.0,
		OutputCostPerMillionUSD: 15.0,
	}
}

// DefaultCircuitBreakerConfig returns the built-in breaker defaults shared by
// the LLM, secondary-store, and storage capability wrappers.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailMax:       5,
		ResetTimeoutS: 30,
	}
}

// DefaultWebhookConfig returns the built-in inbound webhook defaults (§6).
func DefaultWebhookConfig() *WebhookConfig {
	return &WebhookConfig{
		SecretEnv:                 "INBOX_WEBHOOK_SECRET",
		TimestampToleranceSeconds: 300,
	}
}

// DefaultNotificationConfig returns the built-in outbound notification defaults.
func DefaultNotificationConfig() *NotificationConfig {
	return &NotificationConfig{
		SMTPHost:               "localhost",
		SMTPPort:               587,
		SMTPUsernameEnv:        "SMTP_USERNAME",
		SMTPPasswordEnv:        "SMTP_PASSWORD",
		PortalWebhookSecretEnv: "PORTAL_WEBHOOK_SECRET",
	}
}
