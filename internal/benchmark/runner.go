package benchmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

// runFile is the on-disk shape of a completed run: the run record plus its
// frozen summary.
type runFile struct {
	Run
	Summary map[string]any `json:"summary"`
}

// Runner manages benchmark run lifecycles and their durable result files.
// It is single-run at a time; the benchmark fan feeds it sequentially.
type Runner struct {
	outputDir string
	current   *Run
	now       func() time.Time
}

// NewRunner creates a runner writing result files under outputDir.
func NewRunner(outputDir string) *Runner {
	return &Runner{outputDir: outputDir, now: time.Now}
}

// StartRun opens a new run with a fresh run identifier.
func (r *Runner) StartRun(repository string) *Run {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	r.current = &Run{
		RunID:      "run_" + id[:12],
		StartedAt:  r.now().UTC(),
		Repository: repository,
	}
	return r.current
}

// Record adds a result to the active run. Results recorded with no active
// run are dropped.
func (r *Runner) Record(res TaskResult) {
	if r.current != nil {
		r.current.AddResult(res)
	}
}

// CompleteRun stamps the completion time, writes <run_id>.json, and returns
// its path. The write is atomic: temp file then rename.
func (r *Runner) CompleteRun() (string, error) {
	if r.current == nil {
		return "", fmt.Errorf("op=benchmark.CompleteRun: %w: no active run", domain.ErrInvalidArgument)
	}
	done := r.now().UTC()
	r.current.CompletedAt = &done

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("op=benchmark.CompleteRun: create output dir: %w", err)
	}
	payload := runFile{Run: *r.current, Summary: r.current.Summary()}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("op=benchmark.CompleteRun: marshal run: %w", err)
	}

	path := filepath.Join(r.outputDir, r.current.RunID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("op=benchmark.CompleteRun: write run file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("op=benchmark.CompleteRun: finalize run file: %w", err)
	}
	r.current = nil
	return path, nil
}

// LoadRun reads a previously completed run back from disk.
func (r *Runner) LoadRun(runID string) (*Run, error) {
	path := filepath.Join(r.outputDir, runID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("op=benchmark.LoadRun: %w: run %s", domain.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("op=benchmark.LoadRun: %w", err)
	}
	var rf runFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("op=benchmark.LoadRun: %w: %w", domain.ErrParsing, err)
	}
	run := rf.Run
	run.TotalTasks = len(run.Results)
	return &run, nil
}

// CompareRuns loads two runs and reports second-minus-first deltas on the
// headline rates.
func (r *Runner) CompareRuns(runID1, runID2 string) (map[string]any, error) {
	run1, err := r.LoadRun(runID1)
	if err != nil {
		return nil, err
	}
	run2, err := r.LoadRun(runID2)
	if err != nil {
		return nil, err
	}
	s1, s2 := run1.Summary(), run2.Summary()
	return map[string]any{
		"run_1":                runID1,
		"run_2":                runID2,
		"success_rate_delta":   num(s2["success_rate"]) - num(s1["success_rate"]),
		"test_pass_rate_delta": num(s2["test_pass_rate"]) - num(s1["test_pass_rate"]),
		"avg_time_delta":       num(s2["avg_time_per_task"]) - num(s1["avg_time_per_task"]),
		"cost_delta":           num(s2["total_cost_usd"]) - num(s1["total_cost_usd"]),
	}, nil
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}
