// Package benchmark runs evaluation batches over the orchestrator, persists
// per-run result files, and computes resolution-quality metrics.
package benchmark

import "time"

// Task statuses recorded per benchmark result.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// TaskResult captures the outcome of one benchmarked task.
type TaskResult struct {
	TaskID         string         `json:"task_id"`
	SourceURL      string         `json:"source_url"`
	Status         string         `json:"status"`
	ExecutionTime  float64        `json:"execution_time_seconds"`
	TokensUsed     int            `json:"tokens_used"`
	CostUSD        float64        `json:"cost_usd"`
	TestsPassed    bool           `json:"tests_passed"`
	Regressions    int            `json:"regressions"`
	PatchGenerated bool           `json:"patch_generated"`
	PatchFiles     []string       `json:"patch_files,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
	Metrics        map[string]any `json:"metrics,omitempty"`
}

// Run is a complete benchmark run: identity, window, and per-task results.
type Run struct {
	RunID       string       `json:"run_id"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Repository  string       `json:"repository"`
	TotalTasks  int          `json:"total_tasks"`
	Results     []TaskResult `json:"results"`
}

// AddResult appends a task result and keeps the total in sync.
func (r *Run) AddResult(res TaskResult) {
	r.Results = append(r.Results, res)
	r.TotalTasks = len(r.Results)
}

// Summary computes the run's aggregate statistics. An empty run yields only
// a status marker, never divide-by-zero rates.
func (r *Run) Summary() map[string]any {
	if len(r.Results) == 0 {
		return map[string]any{"status": "no_results"}
	}

	var successful, failed, testsPassed, patches, regressions, tokens int
	var cost, totalTime float64
	for _, res := range r.Results {
		switch res.Status {
		case StatusSuccess:
			successful++
		case StatusFailed:
			failed++
		}
		if res.TestsPassed {
			testsPassed++
		}
		if res.PatchGenerated {
			patches++
		}
		regressions += res.Regressions
		tokens += res.TokensUsed
		cost += res.CostUSD
		totalTime += res.ExecutionTime
	}

	total := float64(r.TotalTasks)
	return map[string]any{
		"run_id":             r.RunID,
		"repository":         r.Repository,
		"total_tasks":        r.TotalTasks,
		"successful":         successful,
		"failed":             failed,
		"success_rate":       float64(successful) / total,
		"tests_passed":       testsPassed,
		"test_pass_rate":     float64(testsPassed) / total,
		"patches_generated":  patches,
		"total_regressions":  regressions,
		"total_tokens":       tokens,
		"total_cost_usd":     cost,
		"total_time_seconds": totalTime,
		"avg_time_per_task":  totalTime / total,
	}
}
