package intake

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-systems/ballast/pkg/types"
)

func TestAggregator_DuplicateWithinWindow(t *testing.T) {
	a := NewAggregator()

	first := contextFor("ConnectionError", "connection refused")
	second := contextFor("ConnectionError", "connection refused")

	assert.False(t, a.Add(first))
	assert.True(t, a.Add(second))

	g := a.Group(first)
	require.NotNil(t, g)
	assert.Equal(t, 1, g.Size())
	assert.Equal(t, int64(1), g.Duplicates)
}

func TestAggregator_DifferentMessageNotDuplicate(t *testing.T) {
	a := NewAggregator()

	assert.False(t, a.Add(contextFor("ConnectionError", "connection refused by 10.0.0.1")))
	assert.False(t, a.Add(contextFor("ConnectionError", "connection refused by 10.0.0.2")))

	// Same group, two stored entries. Matching is exact, not fuzzy.
	g := a.Group(contextFor("ConnectionError", "x"))
	require.NotNil(t, g)
	assert.Equal(t, 2, g.Size())
	assert.Equal(t, int64(0), g.Duplicates)
}

func TestAggregator_GroupKeyDimensions(t *testing.T) {
	base := contextFor("ConnectionError", "boom")
	base.Metadata.Category = types.CategoryNetwork
	base.Metadata.Severity = types.SeverityHigh
	base.Metadata.Pipeline = "orders"

	variants := []func(ec *types.ErrorContext){
		func(ec *types.ErrorContext) { ec.Metadata.Category = types.CategorySystem },
		func(ec *types.ErrorContext) { ec.Metadata.Severity = types.SeverityCritical },
		func(ec *types.ErrorContext) { ec.Failure.Type = "TimeoutError" },
		func(ec *types.ErrorContext) { ec.Metadata.Pipeline = "billing" },
	}

	for i, mutate := range variants {
		t.Run(fmt.Sprintf("dimension_%d", i), func(t *testing.T) {
			other := contextFor(base.Failure.Type, base.Message)
			other.Metadata.Category = base.Metadata.Category
			other.Metadata.Severity = base.Metadata.Severity
			other.Metadata.Pipeline = base.Metadata.Pipeline
			mutate(other)
			assert.NotEqual(t, GroupKey(base), GroupKey(other))
		})
	}
}

func TestAggregator_WindowExpiry(t *testing.T) {
	a := NewAggregator()
	clock := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }

	assert.False(t, a.Add(contextFor("ConnectionError", "connection refused")))

	// Still inside the 5-minute window.
	clock = clock.Add(4 * time.Minute)
	assert.True(t, a.Add(contextFor("ConnectionError", "connection refused")))

	// Past the window relative to the stored entry: no longer a duplicate.
	clock = clock.Add(2 * time.Minute)
	assert.False(t, a.Add(contextFor("ConnectionError", "connection refused")))
}

func TestAggregator_Prune(t *testing.T) {
	a := NewAggregator()
	clock := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }

	a.Add(contextFor("ConnectionError", "old entry"))
	clock = clock.Add(10 * time.Minute)
	a.Add(contextFor("DiskError", "fresh entry"))

	dropped := a.Prune()
	assert.Equal(t, 1, dropped)

	stats := a.Stats()
	assert.Equal(t, 1, stats.Groups)
	assert.Equal(t, int64(2), stats.Stored)
}

func TestAggregatorStats_String(t *testing.T) {
	a := NewAggregator()
	a.Add(contextFor("ConnectionError", "boom"))
	a.Add(contextFor("ConnectionError", "boom"))

	assert.Equal(t, "groups=1 stored=1 duplicates=1", a.Stats().String())
}
