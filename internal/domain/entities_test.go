package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageOutputAccessors(t *testing.T) {
	out := StageOutput{
		"success":     true,
		"retryable":   false,
		"error":       "parse failed",
		"tokens_used": float64(1234), // JSON decoding yields float64
	}
	assert.True(t, out.Success())
	assert.False(t, out.Retryable())
	assert.Equal(t, "parse failed", out.ErrorMessage())
	assert.Equal(t, 1234, out.TokensUsed())
}

func TestStageOutputTokensUsedIgnoresGarbage(t *testing.T) {
	assert.Equal(t, 0, StageOutput{}.TokensUsed())
	assert.Equal(t, 0, StageOutput{"tokens_used": "many"}.TokensUsed())
	assert.Equal(t, 0, StageOutput{"tokens_used": -5}.TokensUsed())
}

func TestTaskContextSlots(t *testing.T) {
	tc := NewTaskContext(TaskDescriptor{TaskID: "t1", Repository: "acme/widgets"})
	require.Nil(t, tc.Slot(StageAnalyze))

	tc.SetSlot(StageAnalyze, StageOutput{"summary": "first"})
	assert.Equal(t, "first", tc.Slot(StageAnalyze).String("summary"))

	// A rework visit replaces the slot whole.
	tc.SetSlot(StageAnalyze, StageOutput{"other": true})
	assert.Empty(t, tc.Slot(StageAnalyze).String("summary"))
	assert.True(t, tc.Slot(StageAnalyze).Bool("other"))
}

func TestStageWorkerNames(t *testing.T) {
	for _, stage := range WorkingStages {
		name, ok := stage.WorkerName()
		assert.True(t, ok)
		assert.NotEmpty(t, name)
		assert.True(t, stage.IsWorking())
		assert.False(t, stage.IsTerminal())
	}
	for _, stage := range []Stage{StagePending, StageComplete, StageFailed} {
		_, ok := stage.WorkerName()
		assert.False(t, ok)
	}
	assert.True(t, StageComplete.IsTerminal())
	assert.True(t, StageFailed.IsTerminal())
}
