package types

// RetryConfig configures the retry strategy defaults.
type RetryConfig struct {
	MaxAttempts  int     `yaml:"maxAttempts" json:"maxAttempts"`
	Backoff      string  `yaml:"backoff" json:"backoff"`                               // fixed | linear | exponential | exponential_jitter
	InitialDelay string  `yaml:"initialDelay,omitempty" json:"initialDelay,omitempty"` // Go duration, e.g. "500ms"
	MaxDelay     string  `yaml:"maxDelay,omitempty" json:"maxDelay,omitempty"`
	Multiplier   float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	JitterFactor float64 `yaml:"jitterFactor,omitempty" json:"jitterFactor,omitempty"`
}

// CircuitBreakerConfig configures circuit breaker defaults.
type CircuitBreakerConfig struct {
	FailureThreshold int    `yaml:"failureThreshold" json:"failureThreshold"`
	RecoveryTimeout  string `yaml:"recoveryTimeout" json:"recoveryTimeout"` // Go duration
	HalfOpenMaxCalls int    `yaml:"halfOpenMaxCalls" json:"halfOpenMaxCalls"`
}

// ChannelConfig configures one notification channel.
type ChannelConfig struct {
	Type        ChannelType   `yaml:"type" json:"type"`
	MinSeverity ErrorSeverity `yaml:"minSeverity" json:"minSeverity"`
	Path        string        `yaml:"path,omitempty" json:"path,omitempty"`             // file channel
	URL         string        `yaml:"url,omitempty" json:"url,omitempty"`               // webhook channel (stub)
	Recipients  []string      `yaml:"recipients,omitempty" json:"recipients,omitempty"` // email channel (stub)
}

// NotificationConfig configures the notifier's channels.
type NotificationConfig struct {
	Channels []ChannelConfig `yaml:"channels" json:"channels"`
}

// SLATargetConfig sets one target for one service.
type SLATargetConfig struct {
	Service string    `yaml:"service" json:"service"`
	Metric  SLAMetric `yaml:"metric" json:"metric"`
	Target  float64   `yaml:"target" json:"target"`
}

// SLAConfig configures SLA tracking defaults.
type SLAConfig struct {
	Targets []SLATargetConfig `yaml:"targets,omitempty" json:"targets,omitempty"`
}

// CompartmentConfig declares one bulkhead compartment at startup.
type CompartmentConfig struct {
	Name               string `yaml:"name" json:"name"`
	Capacity           int    `yaml:"capacity" json:"capacity"`
	FailureThreshold   int    `yaml:"failureThreshold,omitempty" json:"failureThreshold,omitempty"`
	IsolationThreshold int    `yaml:"isolationThreshold,omitempty" json:"isolationThreshold,omitempty"`
	RecoveryTime       string `yaml:"recoveryTime,omitempty" json:"recoveryTime,omitempty"` // Go duration
}

// BulkheadConfig declares the startup compartments.
type BulkheadConfig struct {
	Compartments []CompartmentConfig `yaml:"compartments,omitempty" json:"compartments,omitempty"`
}

// TimeoutConfig declares base per-operation timeouts.
type TimeoutConfig struct {
	Default    string            `yaml:"default,omitempty" json:"default,omitempty"` // Go duration
	Operations map[string]string `yaml:"operations,omitempty" json:"operations,omitempty"`
}

// ClassifierConfig configures the rule-based classifier.
type ClassifierConfig struct {
	ConfidenceThreshold float64 `yaml:"confidenceThreshold,omitempty" json:"confidenceThreshold,omitempty"`
}

// ServerConfig configures the metrics endpoint.
type ServerConfig struct {
	MetricsPort int `yaml:"metricsPort,omitempty" json:"metricsPort,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty" json:"level,omitempty"` // debug | info | warn | error
}

// EngineConfig is the full static configuration for the engine, loaded from
// ballast.yaml and validated at startup.
type EngineConfig struct {
	Retry          RetryConfig          `yaml:"retry" json:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`
	Notification   NotificationConfig   `yaml:"notification" json:"notification"`
	SLA            SLAConfig            `yaml:"sla,omitempty" json:"sla,omitempty"`
	Bulkhead       BulkheadConfig       `yaml:"bulkhead,omitempty" json:"bulkhead,omitempty"`
	Timeout        TimeoutConfig        `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Classifier     ClassifierConfig     `yaml:"classifier,omitempty" json:"classifier,omitempty"`
	Server         ServerConfig         `yaml:"server,omitempty" json:"server,omitempty"`
	Logging        LoggingConfig        `yaml:"logging,omitempty" json:"logging,omitempty"`
}
