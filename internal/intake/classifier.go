package intake

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/pkg/types"
)

// DefaultConfidenceThreshold gates whether a classification is written back
// into the context's metadata.
const DefaultConfidenceThreshold = 0.7

// classifierHistoryCap bounds the classification history ring.
const classifierHistoryCap = 1000

// Features are the deterministic signals extracted from an error context.
type Features struct {
	TypeName      string
	MessageLength int
	WordCount     int
	HasStackTrace bool
	KeywordCounts map[types.ErrorCategory]int
}

// ClassificationResult is the outcome of one classification attempt.
type ClassificationResult struct {
	ErrorID    string              `json:"errorId"`
	Category   types.ErrorCategory `json:"category"`
	Severity   types.ErrorSeverity `json:"severity"`
	Confidence float64             `json:"confidence"`
	Applied    bool                `json:"applied"`
	At         time.Time           `json:"at"`
}

// typeRule overrides keyword scoring when the failure type name contains the
// substring.
type typeRule struct {
	substring string
	category  types.ErrorCategory
	severity  types.ErrorSeverity
}

// typeRules are checked in order; the first hit wins over keyword scoring.
var typeRules = []typeRule{
	{"Timeout", types.CategoryNetwork, types.SeverityHigh},
	{"Connection", types.CategoryNetwork, types.SeverityHigh},
	{"Memory", types.CategorySystem, types.SeverityCritical},
	{"Disk", types.CategorySystem, types.SeverityCritical},
	{"Validation", types.CategoryValidation, types.SeverityMedium},
	{"Auth", types.CategorySecurity, types.SeverityHigh},
	{"Security", types.CategorySecurity, types.SeverityCritical},
}

// classifierKeywords score per-category keyword hits in the message.
// Priority order when scores tie: network, then system, then validation.
var classifierKeywords = map[types.ErrorCategory][]string{
	types.CategoryNetwork:    {"connection", "timeout", "network", "socket", "dns", "unreachable", "refused"},
	types.CategorySystem:     {"memory", "disk", "file", "resource", "system", "process"},
	types.CategoryValidation: {"validation", "invalid", "schema", "parse", "format", "required"},
}

// scoringOrder fixes the priority among scored categories.
var scoringOrder = []types.ErrorCategory{
	types.CategoryNetwork,
	types.CategorySystem,
	types.CategoryValidation,
}

// Classifier assigns category/severity/confidence to error contexts using
// fixed rule tables. It is deterministic rule scoring, not learned.
type Classifier struct {
	mu        sync.Mutex
	threshold float64
	history   []ClassificationResult
}

// NewClassifier creates a classifier. A non-positive threshold selects the
// default of 0.7.
func NewClassifier(threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Classifier{threshold: threshold}
}

// ExtractFeatures computes the classification signals for a context.
func ExtractFeatures(ec *types.ErrorContext) Features {
	msg := strings.ToLower(ec.Message)
	f := Features{
		TypeName:      ec.Failure.Type,
		MessageLength: len(ec.Message),
		WordCount:     len(strings.Fields(ec.Message)),
		HasStackTrace: ec.Metadata.StackTrace != "",
		KeywordCounts: make(map[types.ErrorCategory]int, len(classifierKeywords)),
	}
	for cat, kws := range classifierKeywords {
		for _, kw := range kws {
			f.KeywordCounts[cat] += strings.Count(msg, kw)
		}
	}
	return f
}

// Classify scores the context and, when confidence meets the threshold,
// writes the category and severity back into its metadata. Every attempt is
// appended to the bounded history regardless of outcome.
func (c *Classifier) Classify(ec *types.ErrorContext) ClassificationResult {
	features := ExtractFeatures(ec)

	result := ClassificationResult{
		ErrorID:  ec.Metadata.ID,
		Category: types.CategoryUnknown,
		Severity: types.SeverityMedium,
		At:       time.Now().UTC(),
	}

	// Keyword scoring in fixed priority order.
	best := 0
	for _, cat := range scoringOrder {
		if n := features.KeywordCounts[cat]; n > best {
			best = n
			result.Category = cat
		}
	}
	if best > 0 {
		// One hit is weak evidence; confidence grows with hits, capped
		// below certainty.
		result.Confidence = 0.5 + 0.15*float64(best)
		if result.Confidence > 0.95 {
			result.Confidence = 0.95
		}
		if result.Category == types.CategorySystem {
			result.Severity = types.SeverityHigh
		}
	}

	// Type-name rules override keyword scoring.
	for _, rule := range typeRules {
		if strings.Contains(features.TypeName, rule.substring) {
			result.Category = rule.category
			result.Severity = rule.severity
			result.Confidence = 0.9
			break
		}
	}

	result.Applied = result.Confidence >= c.threshold
	if result.Applied {
		ec.Metadata.Category = result.Category
		ec.Metadata.Severity = result.Severity
	}
	metrics.ClassificationsTotal.WithLabelValues(strconv.FormatBool(result.Applied)).Inc()

	c.mu.Lock()
	c.history = append(c.history, result)
	if len(c.history) > classifierHistoryCap {
		c.history = c.history[len(c.history)-classifierHistoryCap:]
	}
	c.mu.Unlock()

	return result
}

// History returns a copy of the bounded classification history.
func (c *Classifier) History() []ClassificationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ClassificationResult, len(c.history))
	copy(out, c.history)
	return out
}
