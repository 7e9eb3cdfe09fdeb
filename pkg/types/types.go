package types

import "time"

// FailureInfo captures the identity of an originating failure as data. Only
// the type name, message, and positional arguments survive intake — the live
// error value is never retained, so the concrete type cannot be reconstructed
// on deserialization.
type FailureInfo struct {
	Type    string   `yaml:"type" json:"type"`
	Message string   `yaml:"message" json:"message"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// ErrorMetadata carries the identifying, execution, technical, and system
// facts attached to an error context.
type ErrorMetadata struct {
	ID        string        `yaml:"id" json:"id"`
	Timestamp time.Time     `yaml:"timestamp" json:"timestamp"`
	Category  ErrorCategory `yaml:"category" json:"category"`
	Severity  ErrorSeverity `yaml:"severity" json:"severity"`

	// Execution context supplied by the host (workflow engine, service).
	Pipeline      string `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
	Step          string `yaml:"step,omitempty" json:"step,omitempty"`
	StepIndex     int    `yaml:"stepIndex,omitempty" json:"stepIndex,omitempty"`
	ExecutionID   string `yaml:"executionId,omitempty" json:"executionId,omitempty"`
	CorrelationID string `yaml:"correlationId,omitempty" json:"correlationId,omitempty"`
	ParentID      string `yaml:"parentId,omitempty" json:"parentId,omitempty"`
	RootCauseID   string `yaml:"rootCauseId,omitempty" json:"rootCauseId,omitempty"`

	// Technical call-site facts.
	Function   string `yaml:"function,omitempty" json:"function,omitempty"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	Line       int    `yaml:"line,omitempty" json:"line,omitempty"`
	StackTrace string `yaml:"stackTrace,omitempty" json:"stackTrace,omitempty"`

	// System facts recorded at creation time.
	Host        string `yaml:"host,omitempty" json:"host,omitempty"`
	ProcessID   int    `yaml:"processId,omitempty" json:"processId,omitempty"`
	GoroutineID string `yaml:"goroutineId,omitempty" json:"goroutineId,omitempty"`
	MemoryBytes uint64 `yaml:"memoryBytes,omitempty" json:"memoryBytes,omitempty"`

	Tags   map[string]string      `yaml:"tags,omitempty" json:"tags,omitempty"`
	Custom map[string]interface{} `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// ErrorContext is the full record of one detected failure, from intake through
// recovery and resolution. It is created at detection time and mutated only by
// recovery bookkeeping until resolved or abandoned.
type ErrorContext struct {
	Failure  FailureInfo   `yaml:"failure" json:"failure"`
	Message  string        `yaml:"message" json:"message"`
	Metadata ErrorMetadata `yaml:"metadata" json:"metadata"`

	FrameworkContext map[string]interface{} `yaml:"frameworkContext,omitempty" json:"frameworkContext,omitempty"`
	Parameters       map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	StepOutputs      map[string]interface{} `yaml:"stepOutputs,omitempty" json:"stepOutputs,omitempty"`

	// Recovery bookkeeping.
	SuggestedStrategy RecoveryStrategy `yaml:"suggestedStrategy,omitempty" json:"suggestedStrategy,omitempty"`
	AttemptsMade      int              `yaml:"attemptsMade" json:"attemptsMade"`
	MaxAttempts       int              `yaml:"maxAttempts" json:"maxAttempts"`

	// Resolution bookkeeping.
	Resolved           bool             `yaml:"resolved" json:"resolved"`
	ResolutionStrategy RecoveryStrategy `yaml:"resolutionStrategy,omitempty" json:"resolutionStrategy,omitempty"`
	ResolvedAt         *time.Time       `yaml:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	ResolutionNotes    string           `yaml:"resolutionNotes,omitempty" json:"resolutionNotes,omitempty"`
}

// MarkResolved records the resolution of the error context.
func (ec *ErrorContext) MarkResolved(strategy RecoveryStrategy, notes string) {
	now := time.Now()
	ec.Resolved = true
	ec.ResolutionStrategy = strategy
	ec.ResolvedAt = &now
	ec.ResolutionNotes = notes
}

// RecordAttempt increments the recovery attempt counter.
func (ec *ErrorContext) RecordAttempt() { ec.AttemptsMade++ }

// CanRetry reports whether recovery bookkeeping permits another attempt.
func (ec *ErrorContext) CanRetry() bool { return ec.AttemptsMade < ec.MaxAttempts }

// RecoveryAction describes one planned reaction to a failure, with execution
// parameters and an optional chained fallback.
type RecoveryAction struct {
	Strategy            RecoveryStrategy `yaml:"strategy" json:"strategy"`
	MaxAttempts         int              `yaml:"maxAttempts" json:"maxAttempts"`
	Timeout             time.Duration    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	BackoffMultiplier   float64          `yaml:"backoffMultiplier,omitempty" json:"backoffMultiplier,omitempty"`
	InitialDelay        time.Duration    `yaml:"initialDelay,omitempty" json:"initialDelay,omitempty"`
	Fallback            *RecoveryAction  `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	EscalationThreshold int              `yaml:"escalationThreshold,omitempty" json:"escalationThreshold,omitempty"`
	AttemptsMade        int              `yaml:"attemptsMade" json:"attemptsMade"`
}

// CanRetry reports whether the action has attempts remaining.
func (a *RecoveryAction) CanRetry() bool { return a.AttemptsMade < a.MaxAttempts }

// AttemptRecord is one entry in a retry history.
type AttemptRecord struct {
	Number   int           `json:"number"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// RetryResult is the immutable outcome of one ExecuteWithRetry call.
type RetryResult struct {
	Success       bool            `json:"success"`
	AttemptsMade  int             `json:"attemptsMade"`
	TotalDuration time.Duration   `json:"totalDuration"`
	Result        interface{}     `json:"result,omitempty"`
	Err           error           `json:"-"`
	Attempts      []AttemptRecord `json:"attempts"`
	Delays        []time.Duration `json:"delays,omitempty"`
}

// RecoveryOutcome is the structured result of an orchestrated recovery. The
// orchestrator always returns one of these; it never raises to its caller.
type RecoveryOutcome struct {
	Success  bool             `json:"success"`
	Result   interface{}      `json:"result,omitempty"`
	Err      error            `json:"-"`
	Strategy RecoveryStrategy `json:"strategy"`
	Elapsed  time.Duration    `json:"elapsed"`
}

// BulkheadOutcome is the structured result of one compartment execution.
type BulkheadOutcome struct {
	Compartment string        `json:"compartment"`
	Success     bool          `json:"success"`
	Rejected    bool          `json:"rejected"`
	Result      interface{}   `json:"result,omitempty"`
	Err         error         `json:"-"`
	Elapsed     time.Duration `json:"elapsed"`
}

// TimeoutOutcome is the structured result of a timeout-bounded execution.
// TimedOut executions carry no recorded duration.
type TimeoutOutcome struct {
	Operation string        `json:"operation"`
	Success   bool          `json:"success"`
	TimedOut  bool          `json:"timedOut"`
	Result    interface{}   `json:"result,omitempty"`
	Err       error         `json:"-"`
	Elapsed   time.Duration `json:"elapsed"`
	Limit     time.Duration `json:"limit"`
}

// SLAViolation records one observed breach of a configured target.
type SLAViolation struct {
	Service  string    `json:"service"`
	Metric   SLAMetric `json:"metric"`
	Target   float64   `json:"target"`
	Actual   float64   `json:"actual"`
	Occurred time.Time `json:"occurred"`
}

// SLAServiceReport summarizes one service's window against its targets.
type SLAServiceReport struct {
	Service          string                `json:"service"`
	Samples          int                   `json:"samples"`
	Availability     float64               `json:"availability"`
	ErrorRate        float64               `json:"errorRate"`
	MeanResponseTime time.Duration         `json:"meanResponseTime"`
	P95ResponseTime  time.Duration         `json:"p95ResponseTime"`
	Throughput       float64               `json:"throughput"`
	Targets          map[SLAMetric]float64 `json:"targets,omitempty"`
	Compliant        map[SLAMetric]bool    `json:"compliant,omitempty"`
}

// SLAReport is the on-demand compliance report across services.
type SLAReport struct {
	GeneratedAt      time.Time                    `json:"generatedAt"`
	Services         map[string]SLAServiceReport  `json:"services"`
	RecentViolations []SLAViolation               `json:"recentViolations,omitempty"`
	ViolationCounts  map[string]map[SLAMetric]int `json:"violationCounts,omitempty"`
}
