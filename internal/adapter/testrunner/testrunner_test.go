package testrunner

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunParsesPytestStyleSummary(t *testing.T) {
	requireShell(t)
	r := NewRunner(10*time.Second, "")

	res, err := r.Run(context.Background(), "sh", "-c", "echo '===== 12 passed, 2 failed in 3.4s ====='")
	require.NoError(t, err)
	assert.Equal(t, 12, res.Passed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.AllPassed())
}

func TestRunParsesGoTestStyleOutput(t *testing.T) {
	requireShell(t)
	r := NewRunner(10*time.Second, "")

	res, err := r.Run(context.Background(), "sh", "-c",
		"printf -- '--- PASS: TestA\\n--- PASS: TestB\\n--- FAIL: TestC\\n'")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Passed)
	assert.Equal(t, 1, res.Failed)
}

func TestRunFailingSuiteIsAResultNotAnError(t *testing.T) {
	requireShell(t)
	r := NewRunner(10*time.Second, "")

	res, err := r.Run(context.Background(), "sh", "-c", "echo '0 passed, 3 failed'; exit 1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, 3, res.Failed)
	assert.False(t, res.AllPassed())
}

func TestRunDeadline(t *testing.T) {
	requireShell(t)
	r := NewRunner(100*time.Millisecond, "")

	_, err := r.Run(context.Background(), "sh", "-c", "sleep 5")
	assert.ErrorIs(t, err, domain.ErrDeadlineExceeded)
}

func TestRunMissingCommand(t *testing.T) {
	r := NewRunner(time.Second, "")

	_, err := r.Run(context.Background(), "definitely-not-a-command-xyz")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDeadlineExceeded)
}
