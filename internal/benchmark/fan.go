package benchmark

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/adapter/observability"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

// Processor runs one task through the pipeline and returns its final
// context. The orchestrator engine satisfies this.
type Processor interface {
	Process(ctx context.Context, task domain.TaskDescriptor) *domain.TaskContext
}

// Fan runs a batch of tasks through a Processor with bounded parallelism.
type Fan struct {
	processor   Processor
	concurrency int
	logger      *slog.Logger
}

// NewFan creates a fan. Concurrency below 1 is treated as 1.
func NewFan(p Processor, concurrency int, logger *slog.Logger) *Fan {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fan{processor: p, concurrency: concurrency, logger: logger}
}

// Run processes every task and returns results in completion order. It
// always drains the whole batch; per-task failures become failed results,
// not errors.
func (f *Fan) Run(ctx context.Context, tasks []domain.TaskDescriptor) []TaskResult {
	results := make([]TaskResult, 0, len(tasks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, f.concurrency)

	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(task domain.TaskDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			tc := f.processor.Process(ctx, task)
			res := resultFromContext(task, tc, time.Since(start))
			observability.BenchmarkTasksTotal.WithLabelValues(res.Status).Inc()
			f.logger.Info("benchmark task finished",
				slog.String("task_id", res.TaskID),
				slog.String("status", res.Status),
				slog.Int("tokens_used", res.TokensUsed))

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(task)
	}
	wg.Wait()
	return results
}

func resultFromContext(task domain.TaskDescriptor, tc *domain.TaskContext, elapsed time.Duration) TaskResult {
	res := TaskResult{
		TaskID:        task.TaskID,
		SourceURL:     task.SourceURL,
		Status:        StatusFailed,
		ExecutionTime: elapsed.Seconds(),
	}
	if tc == nil {
		res.Status = StatusError
		return res
	}
	res.TokensUsed = tc.TokensUsed
	res.CostUSD = tc.CostUSD
	res.Errors = tc.Errors

	if tc.FinalState == domain.StageComplete {
		res.Status = StatusSuccess
	} else if hasDeadlineError(tc.Errors) {
		res.Status = StatusTimeout
	}
	if v := tc.Slot(domain.StageValidate); v != nil {
		res.TestsPassed = v.Bool("tests_passed")
		res.Regressions = v.Int("regressions")
	}
	if g := tc.Slot(domain.StageGenerate); g != nil {
		res.PatchGenerated = g.String("patch") != ""
		if files, ok := g["patch_files"].([]string); ok {
			res.PatchFiles = files
		}
	}
	return res
}

func hasDeadlineError(errs []string) bool {
	for _, e := range errs {
		if strings.Contains(strings.ToLower(e), "deadline exceeded") {
			return true
		}
	}
	return false
}
