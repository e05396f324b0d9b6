// Package testrunner executes a project's test command in a sandboxed
// subprocess and reports pass/fail counts for the validation stage.
package testrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

// Result summarises one test run.
type Result struct {
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
}

// AllPassed reports whether the run had no failures and a zero exit code.
func (r Result) AllPassed() bool { return r.Failed == 0 && r.ExitCode == 0 }

// Runner executes test commands with a hard deadline.
type Runner struct {
	Timeout time.Duration
	Dir     string
	Logger  *slog.Logger
}

// NewRunner creates a runner with the given per-run deadline.
func NewRunner(timeout time.Duration, dir string) *Runner {
	return &Runner{Timeout: timeout, Dir: dir, Logger: slog.Default()}
}

// pytest-style and go-test-style summary lines.
var (
	passedPattern = regexp.MustCompile(`(\d+) passed`)
	failedPattern = regexp.MustCompile(`(\d+) failed`)
	goFailPattern = regexp.MustCompile(`(?m)^--- FAIL:`)
	goPassPattern = regexp.MustCompile(`(?m)^--- PASS:`)
)

// Run executes name with args and parses the combined output. A deadline
// interrupt maps to the non-retryable deadline error so the engine fails the
// task instead of burning retries on a hung suite.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	res := Result{Duration: time.Since(start), Output: buf.String()}
	res.Passed, res.Failed = parseCounts(buf.Bytes())

	if ctx.Err() != nil {
		return res, fmt.Errorf("op=testrunner.Run: %w: test command interrupted after %s",
			domain.ErrDeadlineExceeded, res.Duration.Round(time.Millisecond))
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		// Failing tests are a normal result, not a runner error.
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("op=testrunner.Run: %w: %w", domain.ErrConnection, err)
	}

	r.Logger.Debug("test run finished",
		slog.Int("passed", res.Passed),
		slog.Int("failed", res.Failed),
		slog.Int("exit_code", res.ExitCode),
		slog.Duration("duration", res.Duration))
	return res, nil
}

func parseCounts(out []byte) (passed, failed int) {
	if m := passedPattern.FindSubmatch(out); m != nil {
		passed, _ = strconv.Atoi(string(m[1]))
	}
	if m := failedPattern.FindSubmatch(out); m != nil {
		failed, _ = strconv.Atoi(string(m[1]))
	}
	if passed == 0 && failed == 0 {
		passed = len(goPassPattern.FindAll(out, -1))
		failed = len(goFailPattern.FindAll(out, -1))
	}
	return passed, failed
}
