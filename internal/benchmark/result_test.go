package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryEmptyRun(t *testing.T) {
	run := &Run{RunID: "run_empty"}
	assert.Equal(t, map[string]any{"status": "no_results"}, run.Summary())
}

func TestSummaryRates(t *testing.T) {
	run := &Run{RunID: "run_abc", Repository: "acme/widgets"}
	run.AddResult(TaskResult{Status: StatusSuccess, TestsPassed: true, PatchGenerated: true,
		TokensUsed: 5000, CostUSD: 0.02, ExecutionTime: 30})
	run.AddResult(TaskResult{Status: StatusSuccess, TestsPassed: true, PatchGenerated: true,
		TokensUsed: 7000, CostUSD: 0.03, ExecutionTime: 50})
	run.AddResult(TaskResult{Status: StatusFailed, Regressions: 2, PatchGenerated: true,
		TokensUsed: 3000, CostUSD: 0.01, ExecutionTime: 10})
	run.AddResult(TaskResult{Status: StatusTimeout, TokensUsed: 1000, ExecutionTime: 60})

	s := run.Summary()
	assert.Equal(t, 4, s["total_tasks"])
	assert.Equal(t, 2, s["successful"])
	assert.Equal(t, 1, s["failed"])
	assert.InDelta(t, 0.5, s["success_rate"].(float64), 1e-9)
	assert.InDelta(t, 0.5, s["test_pass_rate"].(float64), 1e-9)
	assert.Equal(t, 3, s["patches_generated"])
	assert.Equal(t, 2, s["total_regressions"])
	assert.Equal(t, 16000, s["total_tokens"])
	assert.InDelta(t, 0.06, s["total_cost_usd"].(float64), 1e-9)
	assert.InDelta(t, 37.5, s["avg_time_per_task"].(float64), 1e-9)
}

func TestAddResultKeepsTotalInSync(t *testing.T) {
	run := &Run{}
	require.Zero(t, run.TotalTasks)
	run.AddResult(TaskResult{Status: StatusSuccess})
	run.AddResult(TaskResult{Status: StatusFailed})
	assert.Equal(t, 2, run.TotalTasks)
}
