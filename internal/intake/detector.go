// Package intake implements the error intake pipeline: pattern and
// exception based detection, rule-based classification, priority routing,
// dedup aggregation, and severity-gated notification.
package intake

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/internal/taxonomy"
	"github.com/ballast-systems/ballast/pkg/types"
)

// PatternOptions control how a pattern expression is compiled and matched.
type PatternOptions struct {
	CaseSensitive bool
	WholeWord     bool
	Multiline     bool
}

// ErrorPattern is one compiled detection signature.
type ErrorPattern struct {
	Name       string
	Regex      *regexp.Regexp
	Category   types.ErrorCategory
	Severity   types.ErrorSeverity
	Options    PatternOptions
	Confidence float64
	Tags       []string
}

// NewPattern compiles a detection pattern. Matching is case-insensitive
// unless CaseSensitive is set; WholeWord wraps the expression in word
// boundaries; Multiline lets ^/$ match line starts and ends. Tags are free
// labels carried onto every context the pattern produces.
func NewPattern(name, expr string, category types.ErrorCategory, severity types.ErrorSeverity, confidence float64, opts PatternOptions, tags ...string) (*ErrorPattern, error) {
	if opts.WholeWord {
		expr = `\b(?:` + expr + `)\b`
	}
	var flags string
	if !opts.CaseSensitive {
		flags += "i"
	}
	if opts.Multiline {
		flags += "m"
	}
	if flags != "" {
		expr = "(?" + flags + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", name, err)
	}
	return &ErrorPattern{
		Name:       name,
		Regex:      re,
		Category:   category,
		Severity:   severity,
		Options:    opts,
		Confidence: confidence,
		Tags:       tags,
	}, nil
}

// DefaultPatterns returns the built-in detection signatures covering network,
// system, validation, and security failures.
func DefaultPatterns() []*ErrorPattern {
	specs := []struct {
		name       string
		expr       string
		category   types.ErrorCategory
		severity   types.ErrorSeverity
		confidence float64
	}{
		{"connection-failure", `connection (refused|reset|timed out|closed)`, types.CategoryNetwork, types.SeverityHigh, 0.9},
		{"dns-failure", `(no such host|dns lookup failed)`, types.CategoryNetwork, types.SeverityHigh, 0.85},
		{"out-of-memory", `(out of memory|cannot allocate memory|oom)`, types.CategorySystem, types.SeverityFatal, 0.95},
		{"disk-exhaustion", `(no space left on device|disk full)`, types.CategorySystem, types.SeverityCritical, 0.95},
		{"fd-exhaustion", `too many open files`, types.CategorySystem, types.SeverityCritical, 0.9},
		{"validation-failure", `(validation failed|invalid (value|argument|format)|schema mismatch)`, types.CategoryValidation, types.SeverityMedium, 0.8},
		{"auth-failure", `(authentication failed|permission denied|unauthorized|forbidden)`, types.CategorySecurity, types.SeverityHigh, 0.9},
		{"certificate-failure", `certificate (expired|invalid|verification failed)`, types.CategorySecurity, types.SeverityCritical, 0.9},
	}

	patterns := make([]*ErrorPattern, 0, len(specs))
	for _, s := range specs {
		p, err := NewPattern(s.name, s.expr, s.category, s.severity, s.confidence, PatternOptions{})
		if err != nil {
			// Built-in expressions are constants; a compile failure is a bug.
			panic(err)
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// DetectorStats is a snapshot of detector activity.
type DetectorStats struct {
	PatternsLoaded int   `json:"patternsLoaded"`
	Detections     int64 `json:"detections"`
}

// Detector turns failure signals (raised errors, matched log lines) into
// error contexts.
type Detector struct {
	mu       sync.Mutex
	patterns []*ErrorPattern
	enabled  bool
	stats    DetectorStats
	logger   *slog.Logger
}

// NewDetector creates a detector seeded with the given patterns. Pass
// DefaultPatterns() for the built-in set.
func NewDetector(patterns []*ErrorPattern, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		patterns: patterns,
		enabled:  true,
		stats:    DetectorStats{PatternsLoaded: len(patterns)},
		logger:   logger,
	}
}

// AddPattern appends a pattern to the ordered list.
func (d *Detector) AddPattern(p *ErrorPattern) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns = append(d.patterns, p)
	d.stats.PatternsLoaded = len(d.patterns)
}

// SetEnabled toggles detection. A disabled detector returns no contexts.
func (d *Detector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Stats returns a snapshot of detector activity.
func (d *Detector) Stats() DetectorStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// DetectFromLog matches a log line against every pattern and synthesizes one
// error context per match. Simultaneous matches yield multiple contexts;
// deduplication is the aggregator's job, not the detector's.
func (d *Detector) DetectFromLog(text, level string) []*types.ErrorContext {
	d.mu.Lock()
	if !d.enabled {
		d.mu.Unlock()
		return nil
	}
	patterns := d.patterns
	d.mu.Unlock()

	var contexts []*types.ErrorContext
	for _, p := range patterns {
		if !p.Regex.MatchString(text) {
			continue
		}
		opts := []taxonomy.MetadataOption{
			taxonomy.WithTag("pattern", p.Name),
			taxonomy.WithTag("logLevel", level),
		}
		for _, tag := range p.Tags {
			opts = append(opts, taxonomy.WithTag(tag, "true"))
		}
		meta := taxonomy.NewMetadata(p.Category, p.Severity, opts...)
		ec := taxonomy.NewErrorContext(types.FailureInfo{
			Type:    "LogPatternMatch",
			Message: text,
		}, text, meta)
		contexts = append(contexts, ec)
		metrics.DetectionsTotal.WithLabelValues("log", string(p.Category)).Inc()
	}

	if len(contexts) > 0 {
		d.mu.Lock()
		d.stats.Detections += int64(len(contexts))
		d.mu.Unlock()
		d.logger.Debug("detected errors from log line", "matches", len(contexts), "level", level)
	}
	return contexts
}

// DetectFromFailure produces exactly one error context for a raised failure,
// categorized and ranked by the taxonomy rule tables. Caller-supplied context
// is merged into the metadata's custom data.
func (d *Detector) DetectFromFailure(failure types.FailureInfo, callerCtx map[string]interface{}) *types.ErrorContext {
	d.mu.Lock()
	if !d.enabled {
		d.mu.Unlock()
		return nil
	}
	d.stats.Detections++
	d.mu.Unlock()

	category := taxonomy.Categorize(failure)
	severity := taxonomy.DetermineSeverity(failure)

	opts := make([]taxonomy.MetadataOption, 0, len(callerCtx))
	for k, v := range callerCtx {
		opts = append(opts, taxonomy.WithCustom(k, v))
	}
	meta := taxonomy.NewMetadata(category, severity, opts...)
	// Well-known execution-context keys promote to first-class fields.
	if p, ok := callerCtx["pipeline"].(string); ok {
		meta.Pipeline = p
	}
	if s, ok := callerCtx["step"].(string); ok {
		meta.Step = s
	}
	if e, ok := callerCtx["executionId"].(string); ok {
		meta.ExecutionID = e
	}
	if c, ok := callerCtx["correlationId"].(string); ok {
		meta.CorrelationID = c
	}

	metrics.DetectionsTotal.WithLabelValues("failure", string(category)).Inc()
	return taxonomy.NewErrorContext(failure, failure.Message, meta)
}
