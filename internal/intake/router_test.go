package intake

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-systems/ballast/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouter_FirstMatchWins(t *testing.T) {
	r := NewRouter(quietLogger())
	var ran []string

	require.NoError(t, r.RegisterHandler("network", func(ec *types.ErrorContext) error {
		ran = append(ran, "network")
		return nil
	}))
	require.NoError(t, r.RegisterHandler("catchall", func(ec *types.ErrorContext) error {
		ran = append(ran, "catchall")
		return nil
	}))

	require.NoError(t, r.AddRule(Rule{
		Name:     "catch-everything",
		Priority: 20,
		Handler:  "catchall",
	}))
	require.NoError(t, r.AddRule(Rule{
		Name:       "network-errors",
		Priority:   10,
		Categories: []types.ErrorCategory{types.CategoryNetwork},
		Handler:    "network",
	}))

	ec := contextFor("ConnectionError", "connection refused")
	ec.Metadata.Category = types.CategoryNetwork
	r.Route(ec)

	assert.Equal(t, []string{"network"}, ran)
	assert.Equal(t, int64(1), r.Stats().Successful)
}

func TestRouter_RuleConditionsAreConjunctive(t *testing.T) {
	r := NewRouter(quietLogger())
	hits := 0
	require.NoError(t, r.RegisterHandler("h", func(ec *types.ErrorContext) error {
		hits++
		return nil
	}))
	require.NoError(t, r.AddRule(Rule{
		Name:       "critical-network-orders",
		Categories: []types.ErrorCategory{types.CategoryNetwork},
		Severities: []types.ErrorSeverity{types.SeverityCritical},
		Pipelines:  []string{"orders"},
		Handler:    "h",
	}))

	ec := contextFor("ConnectionError", "boom")
	ec.Metadata.Category = types.CategoryNetwork
	ec.Metadata.Severity = types.SeverityCritical
	ec.Metadata.Pipeline = "orders"
	r.Route(ec)
	assert.Equal(t, 1, hits)

	// Same context except the pipeline no longer matches.
	ec.Metadata.Pipeline = "billing"
	r.Route(ec)
	assert.Equal(t, 1, hits)
}

func TestRouter_DefaultHandlerOnNoMatch(t *testing.T) {
	r := NewRouter(quietLogger())
	defaulted := 0
	r.SetDefaultHandler(func(ec *types.ErrorContext) error {
		defaulted++
		return nil
	})

	r.Route(contextFor("WeirdError", "no rule matches this"))

	assert.Equal(t, 1, defaulted)
	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Fallback)
	assert.Equal(t, int64(1), stats.Successful)
}

func TestRouter_HandlerFailureNotReRouted(t *testing.T) {
	r := NewRouter(quietLogger())
	defaulted := 0
	require.NoError(t, r.RegisterHandler("failing", func(ec *types.ErrorContext) error {
		return errors.New("handler broke")
	}))
	require.NoError(t, r.AddRule(Rule{Name: "all", Handler: "failing"}))
	r.SetDefaultHandler(func(ec *types.ErrorContext) error {
		defaulted++
		return nil
	})

	r.Route(contextFor("AnyError", "boom"))

	assert.Equal(t, 0, defaulted)
	assert.Equal(t, int64(1), r.Stats().Failed)
}

func TestRouter_HandlerPanicContained(t *testing.T) {
	r := NewRouter(quietLogger())
	require.NoError(t, r.RegisterHandler("panicky", func(ec *types.ErrorContext) error {
		panic("handler exploded")
	}))
	require.NoError(t, r.AddRule(Rule{Name: "all", Handler: "panicky"}))

	assert.NotPanics(t, func() {
		r.Route(contextFor("AnyError", "boom"))
	})
	assert.Equal(t, int64(1), r.Stats().Failed)
}

func TestRouter_SetupErrors(t *testing.T) {
	r := NewRouter(quietLogger())
	require.NoError(t, r.RegisterHandler("h", func(ec *types.ErrorContext) error { return nil }))

	assert.Error(t, r.RegisterHandler("h", func(ec *types.ErrorContext) error { return nil }))
	assert.Error(t, r.AddRule(Rule{Name: "dangling", Handler: "missing"}))
}
