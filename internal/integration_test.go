package internal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-systems/ballast/internal/config"
	"github.com/ballast-systems/ballast/internal/engine"
	"github.com/ballast-systems/ballast/internal/testutil"
	"github.com/ballast-systems/ballast/pkg/types"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quietEngine(t *testing.T, mutate func(cfg *types.EngineConfig)) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	eng, err := engine.New(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng
}

func readNotificationLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ---------------------------------------------------------------------------
// End-to-end flows
// ---------------------------------------------------------------------------

func TestEndToEnd_FailureToFileNotification(t *testing.T) {
	notifPath := filepath.Join(t.TempDir(), "notifications.log")
	eng := quietEngine(t, func(cfg *types.EngineConfig) {
		cfg.Notification.Channels = []types.ChannelConfig{
			{Type: types.ChannelFile, Path: notifPath, MinSeverity: types.SeverityHigh},
		}
	})

	// A high-severity network failure reaches the file channel.
	ec := eng.Intake.ProcessFailure(types.FailureInfo{
		Type:    "ConnectionError",
		Message: "connection refused",
	}, map[string]interface{}{"pipeline": "orders", "step": "charge-card"})
	require.NotNil(t, ec)

	lines := readNotificationLines(t, notifPath)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[high] network error")
	assert.Contains(t, lines[0], "in orders/charge-card")
	assert.Contains(t, lines[0], "connection refused")

	// A low-severity failure is gated out.
	eng.Intake.ProcessFailure(types.FailureInfo{
		Type:    "BusinessRuleError",
		Message: "order total below minimum",
	}, nil)
	assert.Len(t, readNotificationLines(t, notifPath), 1)
}

func TestEndToEnd_DuplicateStorm(t *testing.T) {
	notifPath := filepath.Join(t.TempDir(), "notifications.log")
	eng := quietEngine(t, func(cfg *types.EngineConfig) {
		cfg.Notification.Channels = []types.ChannelConfig{
			{Type: types.ChannelFile, Path: notifPath, MinSeverity: types.SeverityLow},
		}
	})

	// Fifty identical failures inside the window produce one notification.
	for i := 0; i < 50; i++ {
		eng.Intake.ProcessFailure(types.FailureInfo{
			Type:    "TimeoutError",
			Message: "upstream timed out after 30s",
		}, map[string]interface{}{"pipeline": "ingest"})
	}

	assert.Len(t, readNotificationLines(t, notifPath), 1)
	assert.Equal(t, int64(49), eng.Intake.Aggregator.Stats().Duplicates)
}

func TestEndToEnd_DetectRecoverAndTrack(t *testing.T) {
	eng := quietEngine(t, func(cfg *types.EngineConfig) {
		cfg.Retry.InitialDelay = "1ms"
		cfg.Retry.MaxDelay = "5ms"
		cfg.SLA.Targets = []types.SLATargetConfig{
			{Service: "ingest", Metric: types.SLAAvailability, Target: 0.95},
		}
	})

	ec := eng.Intake.ProcessFailure(types.FailureInfo{
		Type:    "ConnectionError",
		Message: "connection reset by peer",
	}, map[string]interface{}{"pipeline": "ingest"})
	require.NotNil(t, ec)

	start := time.Now()
	outcome := eng.Orchestrator.Recover(context.Background(), ec, testutil.FlakyOp(2, "reconnected"))
	eng.SLA.RecordOperation("ingest", outcome.Success, time.Since(start))

	require.True(t, outcome.Success)
	assert.True(t, ec.Resolved)
	assert.Equal(t, types.StrategyRetry, ec.ResolutionStrategy)

	report := eng.SLA.Report("ingest")
	assert.Equal(t, 1, report.Services["ingest"].Samples)
}

func TestEndToEnd_BulkheadGuardsRecovery(t *testing.T) {
	eng := quietEngine(t, func(cfg *types.EngineConfig) {
		cfg.Bulkhead.Compartments = []types.CompartmentConfig{
			{Name: "database", Capacity: 2, FailureThreshold: 3, IsolationThreshold: 6, RecoveryTime: "1s"},
		}
	})

	// Concurrent load inside capacity all succeeds.
	var wg sync.WaitGroup
	results := make([]types.BulkheadOutcome, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = eng.Bulkhead.Execute(context.Background(), "database", testutil.SucceedingOp(i))
		}(i)
	}
	wg.Wait()
	for _, res := range results {
		assert.True(t, res.Success)
	}

	comp, err := eng.Bulkhead.Compartment("database")
	require.NoError(t, err)
	assert.Equal(t, types.CompartmentHealthy, comp.State())
	assert.Equal(t, int64(2), comp.Stats().TotalRequests)
}

func TestEndToEnd_TimeoutFeedsSLA(t *testing.T) {
	eng := quietEngine(t, func(cfg *types.EngineConfig) {
		cfg.Timeout.Operations = map[string]string{"slow-op": "20ms"}
		cfg.SLA.Targets = []types.SLATargetConfig{
			{Service: "slow-op", Metric: types.SLAErrorRate, Target: 0.05},
		}
	})

	never := make(chan struct{})
	outcome := eng.Timeouts.ExecuteWithTimeout(context.Background(), "slow-op", testutil.BlockingOp(never, "late"))
	eng.SLA.RecordOperation("slow-op", !outcome.TimedOut, outcome.Limit)

	assert.True(t, outcome.TimedOut)
	assert.Equal(t, int64(1), eng.Timeouts.Stats("slow-op").Violations)

	_, failures := eng.SLA.Totals()
	assert.Equal(t, int64(1), failures)

	// Let the cancelled operation goroutine exit.
	time.Sleep(30 * time.Millisecond)
}
