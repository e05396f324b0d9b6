package benchmark

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

type fakeProcessor struct {
	delay      time.Duration
	inFlight   atomic.Int32
	maxFlight  atomic.Int32
	buildFinal func(task domain.TaskDescriptor) *domain.TaskContext
}

func (p *fakeProcessor) Process(_ context.Context, task domain.TaskDescriptor) *domain.TaskContext {
	cur := p.inFlight.Add(1)
	for {
		prev := p.maxFlight.Load()
		if cur <= prev || p.maxFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.inFlight.Add(-1)
	return p.buildFinal(task)
}

func completedContext(task domain.TaskDescriptor) *domain.TaskContext {
	tc := domain.NewTaskContext(task)
	tc.FinalState = domain.StageComplete
	tc.TokensUsed = 4000
	tc.CostUSD = 0.02
	tc.SetSlot(domain.StageGenerate, domain.StageOutput{"patch": "diff --git"})
	tc.SetSlot(domain.StageValidate, domain.StageOutput{"tests_passed": true})
	return tc
}

func batch(n int) []domain.TaskDescriptor {
	tasks := make([]domain.TaskDescriptor, n)
	for i := range tasks {
		tasks[i] = domain.TaskDescriptor{TaskID: string(rune('a' + i))}
	}
	return tasks
}

func TestFanProcessesWholeBatch(t *testing.T) {
	p := &fakeProcessor{buildFinal: completedContext}
	fan := NewFan(p, 2, nil)

	results := fan.Run(context.Background(), batch(5))

	require.Len(t, results, 5)
	seen := map[string]bool{}
	for _, res := range results {
		seen[res.TaskID] = true
		assert.Equal(t, StatusSuccess, res.Status)
		assert.True(t, res.TestsPassed)
		assert.True(t, res.PatchGenerated)
		assert.Equal(t, 4000, res.TokensUsed)
	}
	assert.Len(t, seen, 5, "every task produced exactly one result")
}

func TestFanBoundsParallelism(t *testing.T) {
	p := &fakeProcessor{delay: 20 * time.Millisecond, buildFinal: completedContext}
	fan := NewFan(p, 2, nil)

	fan.Run(context.Background(), batch(6))

	assert.LessOrEqual(t, p.maxFlight.Load(), int32(2))
}

func TestFanMapsFailuresAndTimeouts(t *testing.T) {
	p := &fakeProcessor{buildFinal: func(task domain.TaskDescriptor) *domain.TaskContext {
		tc := domain.NewTaskContext(task)
		tc.FinalState = domain.StageFailed
		if task.TaskID == "a" {
			tc.AddError("issue_intelligence: deadline exceeded")
		} else {
			tc.AddError("validator failed after 4 attempts")
		}
		return tc
	}}
	fan := NewFan(p, 1, nil)

	results := fan.Run(context.Background(), batch(2))

	require.Len(t, results, 2)
	byID := map[string]TaskResult{}
	for _, res := range results {
		byID[res.TaskID] = res
	}
	assert.Equal(t, StatusTimeout, byID["a"].Status)
	assert.Equal(t, StatusFailed, byID["b"].Status)
	assert.NotEmpty(t, byID["b"].Errors)
}
