package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-systems/ballast/internal/config"
	"github.com/ballast-systems/ballast/internal/testutil"
	"github.com/ballast-systems/ballast/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_DefaultConfig(t *testing.T) {
	eng, err := New(config.Default(), quietLogger())
	require.NoError(t, err)
	defer eng.Close()

	require.NotNil(t, eng.Intake)
	require.NotNil(t, eng.Orchestrator)
	require.NotNil(t, eng.Bulkhead)
	require.NotNil(t, eng.Timeouts)
	require.NotNil(t, eng.SLA)
}

func TestNew_WiresConfiguredComponents(t *testing.T) {
	cfg := config.Default()
	cfg.Bulkhead.Compartments = []types.CompartmentConfig{
		{Name: "database", Capacity: 2, FailureThreshold: 3, IsolationThreshold: 6, RecoveryTime: "10s"},
	}
	cfg.Timeout.Default = "5s"
	cfg.Timeout.Operations = map[string]string{"db-query": "2s"}
	cfg.SLA.Targets = []types.SLATargetConfig{
		{Service: "checkout", Metric: types.SLAAvailability, Target: 0.95},
	}

	eng, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer eng.Close()

	outcome := eng.Bulkhead.Execute(context.Background(), "database", testutil.SucceedingOp("row"))
	assert.True(t, outcome.Success)

	assert.Equal(t, 2*time.Second, eng.Timeouts.GetTimeout("db-query"))
	assert.Equal(t, 5*time.Second, eng.Timeouts.GetTimeout("anything-else"))

	eng.SLA.RecordOperation("checkout", true, 10*time.Millisecond)
	ops, _ := eng.SLA.Totals()
	assert.Equal(t, int64(1), ops)
}

func TestNew_EndToEndIntakeAndRecovery(t *testing.T) {
	eng, err := New(config.Default(), quietLogger())
	require.NoError(t, err)
	defer eng.Close()

	ec := eng.Intake.ProcessFailure(types.FailureInfo{
		Type:    "ConnectionError",
		Message: "connection refused",
	}, map[string]interface{}{"pipeline": "orders"})
	require.NotNil(t, ec)
	assert.Equal(t, types.CategoryNetwork, ec.Metadata.Category)

	outcome := eng.Orchestrator.Recover(context.Background(), ec, testutil.FlakyOp(1, "reconnected"))
	assert.True(t, outcome.Success)
	assert.True(t, ec.Resolved)
}

func TestNew_FailFast(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *types.EngineConfig)
	}{
		{"bad backoff kind", func(cfg *types.EngineConfig) { cfg.Retry.Backoff = "quadratic" }},
		{"bad retry delay", func(cfg *types.EngineConfig) { cfg.Retry.InitialDelay = "fast" }},
		{"bad breaker timeout", func(cfg *types.EngineConfig) { cfg.CircuitBreaker.RecoveryTimeout = "soon" }},
		{"bad channel type", func(cfg *types.EngineConfig) {
			cfg.Notification.Channels = []types.ChannelConfig{{Type: "pager"}}
		}},
		{"bad compartment recovery time", func(cfg *types.EngineConfig) {
			cfg.Bulkhead.Compartments = []types.CompartmentConfig{{Name: "db", Capacity: 2, RecoveryTime: "later"}}
		}},
		{"duplicate compartments", func(cfg *types.EngineConfig) {
			cfg.Bulkhead.Compartments = []types.CompartmentConfig{
				{Name: "db", Capacity: 2}, {Name: "db", Capacity: 2},
			}
		}},
		{"bad default timeout", func(cfg *types.EngineConfig) { cfg.Timeout.Default = "whenever" }},
		{"bad sla target", func(cfg *types.EngineConfig) {
			cfg.SLA.Targets = []types.SLATargetConfig{{Service: "x", Metric: types.SLAAvailability, Target: 2}}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			_, err := New(cfg, quietLogger())
			assert.Error(t, err)
		})
	}
}
