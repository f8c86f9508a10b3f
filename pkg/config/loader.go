package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// CreditorInboxYAMLConfig represents the complete creditor-inbox.yaml file structure.
type CreditorInboxYAMLConfig struct {
	Environment  Environment          `yaml:"environment"`
	Queue        *QueueConfig         `yaml:"queue"`
	Retention    *RetentionConfig     `yaml:"retention"`
	Matching     *MatchingConfig      `yaml:"matching"`
	Confidence   *ConfidenceConfig    `yaml:"confidence"`
	Budget       *BudgetConfig        `yaml:"budget"`
	Breaker      *CircuitBreakerConfig `yaml:"circuit_breaker"`
	Webhook      *WebhookConfig       `yaml:"webhook"`
	Notification *NotificationConfig  `yaml:"notification"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load creditor-inbox.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in defaults with user-defined overrides
//  5. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized successfully",
		"environment", cfg.Environment,
		"worker_count", cfg.Queue.WorkerCount,
		"min_match", cfg.Matching.MinMatch)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadCreditorInboxYAML()
	if err != nil {
		return nil, NewLoadError("creditor-inbox.yaml", err)
	}

	env := yamlCfg.Environment
	if env == "" {
		env = EnvironmentDevelopment
	}

	queueCfg := DefaultQueueConfig()
	if yamlCfg.Queue != nil {
		if err := mergo.Merge(queueCfg, yamlCfg.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	retentionCfg := DefaultRetentionConfig()
	if yamlCfg.Retention != nil {
		if err := mergo.Merge(retentionCfg, yamlCfg.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	matchingCfg := DefaultMatchingConfig()
	if yamlCfg.Matching != nil {
		if err := mergo.Merge(matchingCfg, yamlCfg.Matching, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge matching config: %w", err)
		}
	}

	confidenceCfg := DefaultConfidenceConfig()
	if yamlCfg.Confidence != nil {
		if err := mergo.Merge(confidenceCfg, yamlCfg.Confidence, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge confidence config: %w", err)
		}
	}

	budgetCfg := DefaultBudgetConfig()
	if yamlCfg.Budget != nil {
		if err := mergo.Merge(budgetCfg, yamlCfg.Budget, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge budget config: %w", err)
		}
	}

	breakerCfg := DefaultCircuitBreakerConfig()
	if yamlCfg.Breaker != nil {
		if err := mergo.Merge(breakerCfg, yamlCfg.Breaker, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge circuit breaker config: %w", err)
		}
	}

	webhookCfg := DefaultWebhookConfig()
	if yamlCfg.Webhook != nil {
		if err := mergo.Merge(webhookCfg, yamlCfg.Webhook, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge webhook config: %w", err)
		}
	}

	notificationCfg := DefaultNotificationConfig()
	if yamlCfg.Notification != nil {
		if err := mergo.Merge(notificationCfg, yamlCfg.Notification, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge notification config: %w", err)
		}
	}

	return &Config{
		configDir:    configDir,
		Environment:  env,
		Queue:        queueCfg,
		Retention:    retentionCfg,
		Matching:     matchingCfg,
		Confidence:   confidenceCfg,
		Budget:       budgetCfg,
		Breaker:      breakerCfg,
		Webhook:      webhookCfg,
		Notification: notificationCfg,
	}, nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using template-style {{.VAR}} syntax.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadCreditorInboxYAML() (*CreditorInboxYAMLConfig, error) {
	var cfg CreditorInboxYAMLConfig
	if err := l.loadYAML("creditor-inbox.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
