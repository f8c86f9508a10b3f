package config

// Environment controls which ambient behaviors are active.
// In "testing" the scheduler (reconciler, metrics rollup) is suppressed.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentTesting     Environment = "testing"
	EnvironmentProduction  Environment = "production"
)

// IsValid reports whether e is one of the recognised environments.
func (e Environment) IsValid() bool {
	switch e {
	case EnvironmentDevelopment, EnvironmentTesting, EnvironmentProduction:
		return true
	default:
		return false
	}
}

// MatchingConfig holds the matching section of the configuration (§4.7). It
// is loaded, validated and logged; the matching engine does not read it. The
// ThresholdManager resolves thresholds and weights from the
// matching_thresholds table and then from its own compiled constants.
type MatchingConfig struct {
	LookbackDays          int     `yaml:"lookback_days"`
	MinMatch              float64 `yaml:"min_match"`
	GapThreshold          float64 `yaml:"gap_threshold"`
	WeightClientName      float64 `yaml:"weight_client_name"`
	WeightReferenceNumber float64 `yaml:"weight_reference_number"`
	NameOnlyOverride      float64 `yaml:"name_only_override"`
}

// ConfidenceConfig holds the router tier boundaries (§4.8).
type ConfidenceConfig struct {
	HighThreshold float64 `yaml:"high_threshold"`
	LowThreshold  float64 `yaml:"low_threshold"`
}

// BudgetConfig holds per-job token budget and daily cost breaker settings (§4.3).
type BudgetConfig struct {
	MaxTokensPerJob         int     `yaml:"max_tokens_per_job"`
	DailyCostLimitUSD       float64 `yaml:"daily_cost_limit_usd"`
	InputCostPerMillionUSD  float64 `yaml:"claude_input_cost_per_million"`
	OutputCostPerMillionUSD float64 `yaml:"claude_output_cost_per_million"`
}

// CircuitBreakerConfig parameterizes the three external-capability breakers
// (LLM, secondary store, storage) -- identical contracts, shared settings.
type CircuitBreakerConfig struct {
	FailMax       uint32  `yaml:"fail_max"`
	ResetTimeoutS float64 `yaml:"reset_timeout_seconds"`
}

// WebhookConfig controls provider-hosted-inbox signature verification (§6).
type WebhookConfig struct {
	SecretEnv        string `yaml:"secret_env"`
	TimestampToleranceSeconds int `yaml:"timestamp_tolerance_seconds"`
}

// NotificationConfig controls best-effort outbound notifications (§6, §7).
type NotificationConfig struct {
	AdminEmail        string `yaml:"admin_email"`
	SMTPHost          string `yaml:"smtp_host"`
	SMTPPort          int    `yaml:"smtp_port"`
	SMTPUsernameEnv   string `yaml:"smtp_username_env"`
	SMTPPasswordEnv   string `yaml:"smtp_password_env"`
	PortalWebhookURL    string `yaml:"portal_webhook_url"`
	PortalWebhookSecretEnv string `yaml:"portal_webhook_secret_env"`
}
