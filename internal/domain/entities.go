// Package domain defines the entities shared by the orchestrator core:
// pipeline stages, the per-task execution context, stage worker contracts,
// and the error taxonomy.
package domain

import "context"

// TaskDescriptor identifies a single unit of work for the engine.
type TaskDescriptor struct {
	TaskID    string `json:"task_id"`
	SourceURL string `json:"source_url"`
	// Repository holds the code-hosting coordinates in "owner/repo" form.
	Repository string `json:"repository"`
}

// StageOutput is the opaque record a stage worker returns. The engine only
// inspects the canonical fields (tokens_used, success, retryable, error);
// everything else is stage-specific and flows into the context slot as-is.
type StageOutput map[string]any

// TokensUsed returns the non-negative token count reported by the worker.
func (o StageOutput) TokensUsed() int { return o.Int("tokens_used") }

// Int returns the non-negative integer value under key, tolerating the
// numeric types JSON decoding produces. Absent, negative, or non-numeric
// values yield 0.
func (o StageOutput) Int(key string) int {
	switch v := o[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return 0
}

// Success reports the worker's structured success flag.
func (o StageOutput) Success() bool { return o.Bool("success") }

// Retryable reports whether a failed output may be retried by the engine.
func (o StageOutput) Retryable() bool { return o.Bool("retryable") }

// ErrorMessage returns the worker-supplied error description, if any.
func (o StageOutput) ErrorMessage() string { return o.String("error") }

// Bool returns the boolean value under key, or false when absent or not a bool.
func (o StageOutput) Bool(key string) bool {
	v, _ := o[key].(bool)
	return v
}

// String returns the string value under key, or "" when absent or not a string.
func (o StageOutput) String(key string) string {
	v, _ := o[key].(string)
	return v
}

// StageWorker is the contract every stage implementation satisfies. Workers
// read the context, perform their remote work under ctx, and return a fresh
// output record. Workers must not mutate the context's counters; the engine
// owns them.
type StageWorker interface {
	Run(ctx context.Context, tc *TaskContext) (StageOutput, error)
}

// WorkerFunc adapts a plain function to the StageWorker interface.
type WorkerFunc func(ctx context.Context, tc *TaskContext) (StageOutput, error)

// Run implements StageWorker.
func (f WorkerFunc) Run(ctx context.Context, tc *TaskContext) (StageOutput, error) {
	return f(ctx, tc)
}

// WorkerRegistry maps stage worker names to implementations.
type WorkerRegistry map[string]StageWorker

// TaskContext is the mutable record carried from stage to stage. The engine
// exclusively owns it for the lifetime of a task; workers receive it by
// reference for reading.
type TaskContext struct {
	TaskID     string `json:"task_id"`
	SourceURL  string `json:"source_url"`
	Repository string `json:"repository"`

	// Slots holds one output record per visited stage. A slot is written
	// exactly once per successful visit; a rework visit overwrites it whole.
	Slots map[Stage]StageOutput `json:"slots"`

	TokensUsed int      `json:"tokens_used"`
	CostUSD    float64  `json:"cost_usd"`
	RetryCount int      `json:"retry_count"`
	Errors     []string `json:"errors,omitempty"`

	// FinalState is set by the engine when a terminal state is reached.
	FinalState Stage `json:"final_state,omitempty"`
}

// NewTaskContext creates a fresh context for the given task.
func NewTaskContext(task TaskDescriptor) *TaskContext {
	return &TaskContext{
		TaskID:     task.TaskID,
		SourceURL:  task.SourceURL,
		Repository: task.Repository,
		Slots:      make(map[Stage]StageOutput, len(WorkingStages)),
	}
}

// SetSlot replaces the stage's slot with out. Replacement is whole-record:
// a rework visit never observes a partially merged slot.
func (tc *TaskContext) SetSlot(stage Stage, out StageOutput) {
	tc.Slots[stage] = out
}

// Slot returns the stage's slot, or nil when the stage has not completed yet.
func (tc *TaskContext) Slot(stage Stage) StageOutput {
	return tc.Slots[stage]
}

// AddError appends a human-readable error descriptor in chronological order.
func (tc *TaskContext) AddError(msg string) {
	tc.Errors = append(tc.Errors, msg)
}
