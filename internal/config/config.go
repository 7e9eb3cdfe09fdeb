// Package config handles loading and validation of ballast.yaml engine configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ballast-systems/ballast/pkg/types"
)

// Default returns the built-in engine configuration.
func Default() *types.EngineConfig {
	return &types.EngineConfig{
		Retry: types.RetryConfig{
			MaxAttempts:  3,
			Backoff:      string(types.BackoffExponential),
			InitialDelay: "500ms",
			MaxDelay:     "30s",
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		CircuitBreaker: types.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  "30s",
			HalfOpenMaxCalls: 3,
		},
		Notification: types.NotificationConfig{
			Channels: []types.ChannelConfig{
				{Type: types.ChannelLog, MinSeverity: types.SeverityLow},
			},
		},
		Classifier: types.ClassifierConfig{ConfidenceThreshold: 0.7},
		Logging:    types.LoggingConfig{Level: "info"},
	}
}

// Load reads and parses the engine configuration from the given path,
// applying defaults for absent optional sections and failing fast on
// missing required sections or malformed values.
func Load(path string) (*types.EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration shape. Required sections: retry,
// circuitBreaker, notification.
func Validate(cfg *types.EngineConfig) error {
	if err := validateRetry(cfg.Retry); err != nil {
		return err
	}
	if err := validateBreaker(cfg.CircuitBreaker); err != nil {
		return err
	}
	if err := validateNotification(cfg.Notification); err != nil {
		return err
	}
	if err := validateSLA(cfg.SLA); err != nil {
		return err
	}
	if err := validateBulkhead(cfg.Bulkhead); err != nil {
		return err
	}
	if err := validateTimeout(cfg.Timeout); err != nil {
		return err
	}
	if cfg.Classifier.ConfidenceThreshold < 0 || cfg.Classifier.ConfidenceThreshold > 1 {
		return fmt.Errorf("classifier.confidenceThreshold must be in [0,1]")
	}
	return nil
}

func validateRetry(rc types.RetryConfig) error {
	if rc.MaxAttempts <= 0 {
		return fmt.Errorf("retry.maxAttempts must be positive")
	}
	if rc.Backoff == "" {
		return fmt.Errorf("retry.backoff is required")
	}
	if _, err := types.ParseBackoffKind(rc.Backoff); err != nil {
		return fmt.Errorf("retry.backoff: %w", err)
	}
	for field, v := range map[string]string{
		"retry.initialDelay": rc.InitialDelay,
		"retry.maxDelay":     rc.MaxDelay,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if rc.Multiplier < 0 || rc.JitterFactor < 0 {
		return fmt.Errorf("retry multiplier and jitterFactor must be non-negative")
	}
	return nil
}

func validateBreaker(bc types.CircuitBreakerConfig) error {
	if bc.FailureThreshold <= 0 {
		return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
	}
	if bc.RecoveryTimeout == "" {
		return fmt.Errorf("circuitBreaker.recoveryTimeout is required")
	}
	if _, err := time.ParseDuration(bc.RecoveryTimeout); err != nil {
		return fmt.Errorf("circuitBreaker.recoveryTimeout: %w", err)
	}
	if bc.HalfOpenMaxCalls <= 0 {
		return fmt.Errorf("circuitBreaker.halfOpenMaxCalls must be positive")
	}
	return nil
}

func validateNotification(nc types.NotificationConfig) error {
	if len(nc.Channels) == 0 {
		return fmt.Errorf("notification.channels requires at least one channel")
	}
	for i, ch := range nc.Channels {
		if _, err := types.ParseChannelType(string(ch.Type)); err != nil {
			return fmt.Errorf("notification.channels[%d]: %w", i, err)
		}
		if ch.MinSeverity != "" && !ch.MinSeverity.Valid() {
			return fmt.Errorf("notification.channels[%d]: unknown severity %q", i, ch.MinSeverity)
		}
		if ch.Type == types.ChannelFile && ch.Path == "" {
			return fmt.Errorf("notification.channels[%d]: file channel requires path", i)
		}
		if ch.Type == types.ChannelWebhook && ch.URL == "" {
			return fmt.Errorf("notification.channels[%d]: webhook channel requires url", i)
		}
	}
	return nil
}

func validateSLA(sc types.SLAConfig) error {
	for i, t := range sc.Targets {
		if t.Service == "" {
			return fmt.Errorf("sla.targets[%d]: service is required", i)
		}
		if !t.Metric.Valid() {
			return fmt.Errorf("sla.targets[%d]: unknown metric %q", i, t.Metric)
		}
		if t.Target < 0 {
			return fmt.Errorf("sla.targets[%d]: target must be non-negative", i)
		}
	}
	return nil
}

func validateBulkhead(bc types.BulkheadConfig) error {
	seen := make(map[string]bool, len(bc.Compartments))
	for i, c := range bc.Compartments {
		if c.Name == "" {
			return fmt.Errorf("bulkhead.compartments[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("bulkhead.compartments[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Capacity <= 0 {
			return fmt.Errorf("bulkhead.compartments[%d]: capacity must be positive", i)
		}
		if c.RecoveryTime != "" {
			if _, err := time.ParseDuration(c.RecoveryTime); err != nil {
				return fmt.Errorf("bulkhead.compartments[%d].recoveryTime: %w", i, err)
			}
		}
	}
	return nil
}

func validateTimeout(tc types.TimeoutConfig) error {
	if tc.Default != "" {
		if _, err := time.ParseDuration(tc.Default); err != nil {
			return fmt.Errorf("timeout.default: %w", err)
		}
	}
	for name, v := range tc.Operations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("timeout.operations[%s]: %w", name, err)
		}
	}
	return nil
}
