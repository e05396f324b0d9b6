// Package orchestrator implements the guarded state machine and the
// execution engine that walks it. The engine drives a task through the fixed
// analyze -> assess -> plan -> generate -> review -> validate pipeline under
// the configured policies, recording every decision on the trace.
package orchestrator

import (
	"fmt"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/policy"
)

// Guard is a pure predicate over the task context gating one edge.
type Guard func(tc *domain.TaskContext) bool

type edge struct {
	to    domain.Stage
	guard Guard // nil means unconditional
}

// StateMachine enforces the statically declared transition relation.
// Edge existence and guard acceptance fail with distinct errors so callers
// can tell impossible control flow (a bug) apart from a policy denial.
type StateMachine struct {
	current domain.Stage
	history []domain.Stage
	edges   map[domain.Stage][]edge
}

// NewStateMachine builds a machine whose guards close over the given
// policies.
func NewStateMachine(policies *policy.Manager) *StateMachine {
	budgetOK := func(tc *domain.TaskContext) bool {
		return policies.Budget.CheckTokens(tc.TokensUsed, 0) &&
			policies.Budget.CheckCost(tc.CostUSD, 0)
	}
	// Each forward edge requires the upstream slot to carry the minimum
	// fields the downstream stage reads, and the cumulative budget to still
	// have headroom.
	slotReady := func(stage domain.Stage) Guard {
		return func(tc *domain.TaskContext) bool {
			return len(tc.Slot(stage)) > 0
		}
	}
	all := func(guards ...Guard) Guard {
		return func(tc *domain.TaskContext) bool {
			for _, g := range guards {
				if !g(tc) {
					return false
				}
			}
			return true
		}
	}
	reworkOK := func(tc *domain.TaskContext) bool {
		return tc.RetryCount < policies.Retry.MaxRework
	}

	sm := &StateMachine{
		current: domain.StagePending,
		history: []domain.Stage{domain.StagePending},
		edges:   make(map[domain.Stage][]edge),
	}
	add := func(from, to domain.Stage, g Guard) {
		sm.edges[from] = append(sm.edges[from], edge{to: to, guard: g})
	}

	// Linear forward flow.
	add(domain.StagePending, domain.StageAnalyze, budgetOK)
	add(domain.StageAnalyze, domain.StageAssess, all(budgetOK, func(tc *domain.TaskContext) bool {
		return tc.Slot(domain.StageAnalyze).String("summary") != ""
	}))
	add(domain.StageAssess, domain.StagePlan, all(budgetOK, slotReady(domain.StageAssess)))
	add(domain.StagePlan, domain.StageGenerate, all(budgetOK, slotReady(domain.StagePlan)))
	add(domain.StageGenerate, domain.StageReview, all(budgetOK, slotReady(domain.StageGenerate)))
	add(domain.StageReview, domain.StageValidate, all(budgetOK, func(tc *domain.TaskContext) bool {
		review := tc.Slot(domain.StageReview)
		return len(review) > 0 && !review.Bool("requires_changes")
	}))
	add(domain.StageValidate, domain.StageComplete, func(tc *domain.TaskContext) bool {
		return tc.Slot(domain.StageValidate).Bool("tests_passed")
	})

	// Rework edges, bounded by the rework budget.
	add(domain.StageReview, domain.StageGenerate, reworkOK)
	add(domain.StageValidate, domain.StageGenerate, reworkOK)

	// Failure edges are unconditional from every non-terminal state.
	for _, from := range append([]domain.Stage{domain.StagePending}, domain.WorkingStages...) {
		add(from, domain.StageFailed, nil)
	}
	return sm
}

// Current returns the machine's current state.
func (sm *StateMachine) Current() domain.Stage { return sm.current }

// History returns the ordered sequence of visited states, initial state
// included.
func (sm *StateMachine) History() []domain.Stage {
	out := make([]domain.Stage, len(sm.history))
	copy(out, sm.history)
	return out
}

// IsTerminal reports whether the current state is Complete or Failed.
func (sm *StateMachine) IsTerminal() bool { return sm.current.IsTerminal() }

// NextWorker returns the stage worker name for the current state, or false
// for Pending and the terminal states.
func (sm *StateMachine) NextWorker() (string, bool) {
	return sm.current.WorkerName()
}

// CanTransition reports whether the edge to target exists and its guard
// accepts the context.
func (sm *StateMachine) CanTransition(target domain.Stage, tc *domain.TaskContext) bool {
	e, ok := sm.lookup(target)
	if !ok {
		return false
	}
	return e.guard == nil || e.guard(tc)
}

// Transition moves to target, appending to the history. It fails with
// domain.ErrInvalidTransition when the edge does not exist and with
// domain.ErrGuardDenied when only the guard rejects it.
func (sm *StateMachine) Transition(target domain.Stage, tc *domain.TaskContext) error {
	e, ok := sm.lookup(target)
	if !ok {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, sm.current, target)
	}
	if e.guard != nil && !e.guard(tc) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrGuardDenied, sm.current, target)
	}
	sm.current = target
	sm.history = append(sm.history, target)
	return nil
}

// Reset returns the machine to the initial state. Test fixtures only.
func (sm *StateMachine) Reset() {
	sm.current = domain.StagePending
	sm.history = []domain.Stage{domain.StagePending}
}

func (sm *StateMachine) lookup(target domain.Stage) (edge, bool) {
	for _, e := range sm.edges[sm.current] {
		if e.to == target {
			return e, true
		}
	}
	return edge{}, false
}
