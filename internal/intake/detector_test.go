package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-systems/ballast/pkg/types"
)

func TestNewPattern_Options(t *testing.T) {
	p, err := NewPattern("word", "fail", types.CategorySystem, types.SeverityLow, 0.5, PatternOptions{WholeWord: true})
	require.NoError(t, err)
	assert.True(t, p.Regex.MatchString("the job did FAIL today"))
	assert.False(t, p.Regex.MatchString("failure"))

	p, err = NewPattern("case", "Fail", types.CategorySystem, types.SeverityLow, 0.5, PatternOptions{CaseSensitive: true})
	require.NoError(t, err)
	assert.True(t, p.Regex.MatchString("Fail"))
	assert.False(t, p.Regex.MatchString("fail"))
}

func TestNewPattern_TagsCarriedIntoContext(t *testing.T) {
	p, err := NewPattern("tagged", "boom", types.CategorySystem, types.SeverityLow, 0.5, PatternOptions{}, "infra", "flaky-host")
	require.NoError(t, err)
	assert.Equal(t, []string{"infra", "flaky-host"}, p.Tags)

	d := NewDetector([]*ErrorPattern{p}, nil)
	contexts := d.DetectFromLog("boom during startup", "error")
	require.Len(t, contexts, 1)

	tags := contexts[0].Metadata.Tags
	assert.Equal(t, "tagged", tags["pattern"])
	assert.Equal(t, "true", tags["infra"])
	assert.Equal(t, "true", tags["flaky-host"])
}

func TestNewPattern_InvalidExpression(t *testing.T) {
	_, err := NewPattern("bad", "(unclosed", types.CategorySystem, types.SeverityLow, 0.5, PatternOptions{})
	assert.Error(t, err)
}

func TestDetectFromLog_MultipleMatches(t *testing.T) {
	d := NewDetector(DefaultPatterns(), nil)

	// Matches both the connection and the auth signatures; both contexts are
	// produced, dedup is the aggregator's job.
	contexts := d.DetectFromLog("connection refused after authentication failed", "error")
	require.Len(t, contexts, 2)

	categories := []types.ErrorCategory{contexts[0].Metadata.Category, contexts[1].Metadata.Category}
	assert.Contains(t, categories, types.CategoryNetwork)
	assert.Contains(t, categories, types.CategorySecurity)
}

func TestDetectFromLog_NoMatch(t *testing.T) {
	d := NewDetector(DefaultPatterns(), nil)
	assert.Empty(t, d.DetectFromLog("all systems nominal", "info"))
}

func TestDetectFromLog_Disabled(t *testing.T) {
	d := NewDetector(DefaultPatterns(), nil)
	d.SetEnabled(false)
	assert.Nil(t, d.DetectFromLog("connection refused", "error"))

	d.SetEnabled(true)
	assert.NotEmpty(t, d.DetectFromLog("connection refused", "error"))
}

func TestDetectFromFailure_MergesCallerContext(t *testing.T) {
	d := NewDetector(DefaultPatterns(), nil)

	ec := d.DetectFromFailure(types.FailureInfo{
		Type:    "ConnectionError",
		Message: "connection timed out",
	}, map[string]interface{}{
		"pipeline": "orders",
		"step":     "charge-card",
		"attempt":  2,
	})

	require.NotNil(t, ec)
	assert.Equal(t, types.CategoryNetwork, ec.Metadata.Category)
	assert.Equal(t, types.SeverityHigh, ec.Metadata.Severity)
	assert.Equal(t, "orders", ec.Metadata.Pipeline)
	assert.Equal(t, "charge-card", ec.Metadata.Step)
	assert.Equal(t, 2, ec.Metadata.Custom["attempt"])
}

func TestDetectFromFailure_Disabled(t *testing.T) {
	d := NewDetector(DefaultPatterns(), nil)
	d.SetEnabled(false)
	assert.Nil(t, d.DetectFromFailure(types.FailureInfo{Type: "X", Message: "y"}, nil))
}

func TestDetectorStats(t *testing.T) {
	d := NewDetector(DefaultPatterns(), nil)
	assert.Equal(t, len(DefaultPatterns()), d.Stats().PatternsLoaded)

	d.DetectFromFailure(types.FailureInfo{Type: "X", Message: "connection refused"}, nil)
	d.DetectFromLog("out of memory", "error")
	assert.Equal(t, int64(2), d.Stats().Detections)

	p, err := NewPattern("extra", "boom", types.CategorySystem, types.SeverityLow, 0.5, PatternOptions{})
	require.NoError(t, err)
	d.AddPattern(p)
	assert.Equal(t, len(DefaultPatterns())+1, d.Stats().PatternsLoaded)
}
