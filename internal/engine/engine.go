// Package engine assembles the intake pipeline, recovery strategies, and
// resilience control plane from one validated configuration.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ballast-systems/ballast/internal/intake"
	"github.com/ballast-systems/ballast/internal/recovery"
	"github.com/ballast-systems/ballast/internal/resilience"
	"github.com/ballast-systems/ballast/pkg/types"
)

// Engine is the assembled reliability engine. It is constructed once at
// startup and shared by reference; there are no package-level singletons.
type Engine struct {
	Intake       *intake.Pipeline
	Orchestrator *recovery.Orchestrator
	Bulkhead     *resilience.Bulkhead
	Timeouts     *resilience.TimeoutManager
	SLA          *resilience.SLAStore

	logger *slog.Logger
}

// New builds an engine from a validated configuration. Malformed settings
// that slipped past validation (or came from a hand-built config) fail fast.
func New(cfg *types.EngineConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	retryCfg, err := retryConfig(cfg.Retry)
	if err != nil {
		return nil, err
	}
	breakerCfg, err := breakerConfig(cfg.CircuitBreaker)
	if err != nil {
		return nil, err
	}

	notifier, err := intake.NewNotifierFromConfig(cfg.Notification, logger)
	if err != nil {
		return nil, err
	}

	pipeline := intake.NewPipeline(
		intake.NewDetector(intake.DefaultPatterns(), logger),
		intake.NewClassifier(cfg.Classifier.ConfidenceThreshold),
		intake.NewAggregator(),
		intake.NewRouter(logger),
		notifier,
		logger,
	)

	orchestrator := recovery.NewOrchestrator(
		recovery.NewRetryer(retryCfg),
		recovery.NewCircuitBreaker("default", breakerCfg),
		recovery.NewFallbackChain(),
		logger,
	)

	// Any failure past this point must stop the worker pools already started.
	bulkhead := resilience.NewBulkhead(logger)
	for _, cc := range cfg.Bulkhead.Compartments {
		compCfg, err := compartmentConfig(cc)
		if err != nil {
			bulkhead.Close()
			return nil, err
		}
		if _, err := bulkhead.CreateCompartment(cc.Name, compCfg); err != nil {
			bulkhead.Close()
			return nil, err
		}
	}

	var defaultTO time.Duration
	if cfg.Timeout.Default != "" {
		if defaultTO, err = time.ParseDuration(cfg.Timeout.Default); err != nil {
			bulkhead.Close()
			return nil, fmt.Errorf("timeout.default: %w", err)
		}
	}
	timeouts := resilience.NewTimeoutManager(defaultTO)
	for name, v := range cfg.Timeout.Operations {
		d, err := time.ParseDuration(v)
		if err != nil {
			bulkhead.Close()
			return nil, fmt.Errorf("timeout.operations[%s]: %w", name, err)
		}
		timeouts.SetTimeout(name, d)
	}

	sla := resilience.NewSLAStore()
	for _, t := range cfg.SLA.Targets {
		if err := sla.SetTarget(t.Service, t.Metric, t.Target); err != nil {
			bulkhead.Close()
			return nil, err
		}
	}

	return &Engine{
		Intake:       pipeline,
		Orchestrator: orchestrator,
		Bulkhead:     bulkhead,
		Timeouts:     timeouts,
		SLA:          sla,
		logger:       logger,
	}, nil
}

// Close releases engine resources (compartment worker pools).
func (e *Engine) Close() {
	e.Bulkhead.Close()
}

func retryConfig(rc types.RetryConfig) (recovery.RetryConfig, error) {
	kind, err := types.ParseBackoffKind(rc.Backoff)
	if err != nil {
		return recovery.RetryConfig{}, fmt.Errorf("retry.backoff: %w", err)
	}
	out := recovery.RetryConfig{
		MaxAttempts:  rc.MaxAttempts,
		Backoff:      kind,
		Multiplier:   rc.Multiplier,
		JitterFactor: rc.JitterFactor,
	}
	if rc.InitialDelay != "" {
		if out.InitialDelay, err = time.ParseDuration(rc.InitialDelay); err != nil {
			return recovery.RetryConfig{}, fmt.Errorf("retry.initialDelay: %w", err)
		}
	}
	if rc.MaxDelay != "" {
		if out.MaxDelay, err = time.ParseDuration(rc.MaxDelay); err != nil {
			return recovery.RetryConfig{}, fmt.Errorf("retry.maxDelay: %w", err)
		}
	}
	return out, nil
}

func breakerConfig(bc types.CircuitBreakerConfig) (recovery.BreakerConfig, error) {
	out := recovery.BreakerConfig{
		FailureThreshold: bc.FailureThreshold,
		HalfOpenMaxCalls: bc.HalfOpenMaxCalls,
	}
	if bc.RecoveryTimeout != "" {
		var err error
		if out.RecoveryTimeout, err = time.ParseDuration(bc.RecoveryTimeout); err != nil {
			return recovery.BreakerConfig{}, fmt.Errorf("circuitBreaker.recoveryTimeout: %w", err)
		}
	}
	return out, nil
}

func compartmentConfig(cc types.CompartmentConfig) (resilience.CompartmentConfig, error) {
	out := resilience.CompartmentConfig{
		Capacity:           int64(cc.Capacity),
		FailureThreshold:   cc.FailureThreshold,
		IsolationThreshold: cc.IsolationThreshold,
	}
	if cc.RecoveryTime != "" {
		var err error
		if out.RecoveryTime, err = time.ParseDuration(cc.RecoveryTime); err != nil {
			return resilience.CompartmentConfig{}, fmt.Errorf("bulkhead compartment %q recoveryTime: %w", cc.Name, err)
		}
	}
	return out, nil
}
