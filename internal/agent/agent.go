// Package agent provides stage worker implementations. The stub workers
// here exercise the full pipeline without calling a model provider; real
// providers plug in through the same domain.StageWorker contract.
package agent

import (
	"context"
	"time"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

// StaticWorker returns the same output (or error) on every invocation,
// optionally after a delay. The delay honours ctx cancellation so timeout
// behaviour can be observed end to end.
type StaticWorker struct {
	Output domain.StageOutput
	Err    error
	Delay  time.Duration
}

// Run implements domain.StageWorker.
func (w *StaticWorker) Run(ctx context.Context, _ *domain.TaskContext) (domain.StageOutput, error) {
	if w.Delay > 0 {
		timer := time.NewTimer(w.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Output, nil
}

// ScriptedWorker plays back a sequence of outputs across invocations,
// repeating the last entry once the script runs out. It models rework
// scenarios where a reviewer demands changes on the first pass and accepts
// the second.
type ScriptedWorker struct {
	Script []domain.StageOutput
	Errs   []error
	calls  int
}

// Run implements domain.StageWorker.
func (w *ScriptedWorker) Run(_ context.Context, _ *domain.TaskContext) (domain.StageOutput, error) {
	i := w.calls
	w.calls++
	if i < len(w.Errs) && w.Errs[i] != nil {
		return nil, w.Errs[i]
	}
	if len(w.Script) == 0 {
		return domain.StageOutput{"success": true}, nil
	}
	if i >= len(w.Script) {
		i = len(w.Script) - 1
	}
	return w.Script[i], nil
}

// StubRegistry returns a full worker set producing plausible canned outputs
// for every stage. The happy path runs the pipeline straight through to
// completion.
func StubRegistry() domain.WorkerRegistry {
	return domain.WorkerRegistry{
		domain.WorkerIssueIntelligence: &StaticWorker{Output: domain.StageOutput{
			"success":     true,
			"summary":     "null pointer dereference in config loader when the file is empty",
			"category":    "bug",
			"tokens_used": 850,
		}},
		domain.WorkerImpactAssessment: &StaticWorker{Output: domain.StageOutput{
			"success":        true,
			"affected_files": []string{"internal/config/config.go"},
			"blast_radius":   "low",
			"tokens_used":    620,
		}},
		domain.WorkerPlanner: &StaticWorker{Output: domain.StageOutput{
			"success":     true,
			"steps":       []string{"guard against empty file", "add regression test"},
			"tokens_used": 940,
		}},
		domain.WorkerCodeGenerator: &StaticWorker{Output: domain.StageOutput{
			"success":     true,
			"patch":       "--- a/internal/config/config.go\n+++ b/internal/config/config.go\n@@\n+\tif len(data) == 0 {\n+\t\treturn nil, ErrEmptyConfig\n+\t}\n",
			"tokens_used": 1800,
		}},
		domain.WorkerPRReviewer: &StaticWorker{Output: domain.StageOutput{
			"success":          true,
			"requires_changes": false,
			"comments":         []string{},
			"tokens_used":      760,
		}},
		domain.WorkerValidator: &StaticWorker{Output: domain.StageOutput{
			"success":      true,
			"tests_passed": true,
			"passed":       12,
			"failed":       0,
			"tokens_used":  540,
		}},
	}
}
