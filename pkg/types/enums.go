// Package types defines the public domain types for the Ballast reliability engine.
package types

import "fmt"

// ErrorCategory classifies the origin domain of a failure.
type ErrorCategory string

// ErrorCategory values enumerate the closed set of failure domains.
const (
	CategorySystem     ErrorCategory = "system"
	CategoryNetwork    ErrorCategory = "network"
	CategoryValidation ErrorCategory = "validation"
	CategoryBusiness   ErrorCategory = "business"
	CategorySecurity   ErrorCategory = "security"
	CategoryFramework  ErrorCategory = "framework"
	CategoryUnknown    ErrorCategory = "unknown"
)

var categories = map[ErrorCategory]bool{
	CategorySystem:     true,
	CategoryNetwork:    true,
	CategoryValidation: true,
	CategoryBusiness:   true,
	CategorySecurity:   true,
	CategoryFramework:  true,
	CategoryUnknown:    true,
}

// ParseCategory converts a string tag to an ErrorCategory.
func ParseCategory(s string) (ErrorCategory, error) {
	c := ErrorCategory(s)
	if !categories[c] {
		return CategoryUnknown, fmt.Errorf("unknown error category %q", s)
	}
	return c, nil
}

// Valid reports whether the category is a member of the closed set.
func (c ErrorCategory) Valid() bool { return categories[c] }

// ErrorSeverity ranks how damaging a failure is. Severities are totally
// ordered by Weight; comparisons must use the numeric value, never the tag.
type ErrorSeverity string

// ErrorSeverity values from least to most damaging.
const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
	SeverityFatal    ErrorSeverity = "fatal"
)

var severityWeights = map[ErrorSeverity]int{
	SeverityLow:      10,
	SeverityMedium:   20,
	SeverityHigh:     30,
	SeverityCritical: 40,
	SeverityFatal:    50,
}

// ParseSeverity converts a string tag to an ErrorSeverity.
func ParseSeverity(s string) (ErrorSeverity, error) {
	sev := ErrorSeverity(s)
	if _, ok := severityWeights[sev]; !ok {
		return SeverityMedium, fmt.Errorf("unknown error severity %q", s)
	}
	return sev, nil
}

// Weight returns the numeric rank of the severity. Unknown tags rank as 0,
// below every defined severity.
func (s ErrorSeverity) Weight() int { return severityWeights[s] }

// Valid reports whether the severity is a defined tag.
func (s ErrorSeverity) Valid() bool { _, ok := severityWeights[s]; return ok }

// AtLeast reports whether s ranks at or above other.
func (s ErrorSeverity) AtLeast(other ErrorSeverity) bool {
	return s.Weight() >= other.Weight()
}

// RecoveryStrategy names the reaction the engine takes to a failure.
type RecoveryStrategy string

// RecoveryStrategy values enumerate the supported reactions.
const (
	StrategyRetry          RecoveryStrategy = "retry"
	StrategyFallback       RecoveryStrategy = "fallback"
	StrategyCircuitBreaker RecoveryStrategy = "circuit_breaker"
	StrategyRollback       RecoveryStrategy = "rollback"
	StrategyEscalate       RecoveryStrategy = "escalate"
	StrategyIgnore         RecoveryStrategy = "ignore"
	StrategyManual         RecoveryStrategy = "manual"
)

var strategies = map[RecoveryStrategy]bool{
	StrategyRetry:          true,
	StrategyFallback:       true,
	StrategyCircuitBreaker: true,
	StrategyRollback:       true,
	StrategyEscalate:       true,
	StrategyIgnore:         true,
	StrategyManual:         true,
}

// ParseStrategy converts a string tag to a RecoveryStrategy.
func ParseStrategy(s string) (RecoveryStrategy, error) {
	rs := RecoveryStrategy(s)
	if !strategies[rs] {
		return StrategyManual, fmt.Errorf("unknown recovery strategy %q", s)
	}
	return rs, nil
}

// Valid reports whether the strategy is a defined tag.
func (s RecoveryStrategy) Valid() bool { return strategies[s] }

// CircuitState is the state of a circuit breaker.
type CircuitState string

// CircuitState values.
const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CompartmentState is the health state of a bulkhead compartment.
type CompartmentState string

// CompartmentState values.
const (
	CompartmentHealthy    CompartmentState = "healthy"
	CompartmentDegraded   CompartmentState = "degraded"
	CompartmentIsolated   CompartmentState = "isolated"
	CompartmentRecovering CompartmentState = "recovering"
)

// BackoffKind selects the delay curve between retry attempts.
type BackoffKind string

// BackoffKind values.
const (
	BackoffFixed             BackoffKind = "fixed"
	BackoffLinear            BackoffKind = "linear"
	BackoffExponential       BackoffKind = "exponential"
	BackoffExponentialJitter BackoffKind = "exponential_jitter"
)

var backoffKinds = map[BackoffKind]bool{
	BackoffFixed:             true,
	BackoffLinear:            true,
	BackoffExponential:       true,
	BackoffExponentialJitter: true,
}

// ParseBackoffKind converts a string tag to a BackoffKind.
func ParseBackoffKind(s string) (BackoffKind, error) {
	k := BackoffKind(s)
	if !backoffKinds[k] {
		return BackoffFixed, fmt.Errorf("unknown backoff kind %q", s)
	}
	return k, nil
}

// Valid reports whether the backoff kind is a defined tag.
func (k BackoffKind) Valid() bool { return backoffKinds[k] }

// ChannelType identifies a notification channel backend.
type ChannelType string

// ChannelType values enumerate the supported notification backends.
const (
	ChannelLog     ChannelType = "log"
	ChannelConsole ChannelType = "console"
	ChannelFile    ChannelType = "file"
	ChannelEmail   ChannelType = "email"
	ChannelWebhook ChannelType = "webhook"
)

var channelTypes = map[ChannelType]bool{
	ChannelLog:     true,
	ChannelConsole: true,
	ChannelFile:    true,
	ChannelEmail:   true,
	ChannelWebhook: true,
}

// ParseChannelType converts a string tag to a ChannelType.
func ParseChannelType(s string) (ChannelType, error) {
	c := ChannelType(s)
	if !channelTypes[c] {
		return "", fmt.Errorf("unknown channel type %q", s)
	}
	return c, nil
}

// SLAMetric names a service-level target dimension.
type SLAMetric string

// SLAMetric values.
const (
	SLAAvailability SLAMetric = "availability"
	SLAResponseTime SLAMetric = "response_time"
	SLAErrorRate    SLAMetric = "error_rate"
	SLAThroughput   SLAMetric = "throughput"
)

var slaMetrics = map[SLAMetric]bool{
	SLAAvailability: true,
	SLAResponseTime: true,
	SLAErrorRate:    true,
	SLAThroughput:   true,
}

// ParseSLAMetric converts a string tag to an SLAMetric.
func ParseSLAMetric(s string) (SLAMetric, error) {
	m := SLAMetric(s)
	if !slaMetrics[m] {
		return "", fmt.Errorf("unknown SLA metric %q", s)
	}
	return m, nil
}

// Valid reports whether the metric is a defined tag.
func (m SLAMetric) Valid() bool { return slaMetrics[m] }
