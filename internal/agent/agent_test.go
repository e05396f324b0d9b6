package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

func TestStubRegistryCoversEveryStage(t *testing.T) {
	reg := StubRegistry()
	for _, stage := range domain.WorkingStages {
		name, ok := stage.WorkerName()
		require.True(t, ok)
		worker, ok := reg[name]
		require.True(t, ok, name)

		out, err := worker.Run(context.Background(), domain.NewTaskContext(domain.TaskDescriptor{}))
		require.NoError(t, err)
		assert.True(t, out.Success(), name)
	}
}

func TestStaticWorkerHonoursCancellation(t *testing.T) {
	w := &StaticWorker{
		Output: domain.StageOutput{"success": true},
		Delay:  time.Second,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := w.Run(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestStaticWorkerReturnsConfiguredError(t *testing.T) {
	boom := errors.New("boom")
	w := &StaticWorker{Err: boom}
	_, err := w.Run(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestScriptedWorkerPlaysSequence(t *testing.T) {
	w := &ScriptedWorker{
		Errs: []error{errors.New("first call fails"), nil, nil},
		Script: []domain.StageOutput{
			nil,
			{"success": true, "attempt": 2},
			{"success": true, "attempt": 3},
		},
	}

	_, err := w.Run(context.Background(), nil)
	assert.Error(t, err)

	out, err := w.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Int("attempt"))

	out, err = w.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Int("attempt"))

	// Past the end of the script the last output repeats.
	out, err = w.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Int("attempt"))
}
