// Package tracing produces the durable per-task event log and a small
// in-process metrics collector. The trace is the reproducibility record: a
// monotonically time-ordered event sequence flushed atomically to a JSON
// file when the task reaches a terminal state.
package tracing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event kinds emitted by the engine. The set is extensible; these are the
// kinds the engine produces today.
const (
	EventExecutionStarted   = "execution_started"
	EventStageStarted       = "stage_started"
	EventStageCompleted     = "stage_completed"
	EventStageFailed        = "stage_failed"
	EventTransition         = "transition"
	EventBudgetCheckpoint   = "budget_checkpoint"
	EventExecutionCompleted = "execution_completed"
)

// Event is a single immutable trace entry.
type Event struct {
	Timestamp  string         `json:"timestamp"`
	Kind       string         `json:"event_type"`
	Stage      string         `json:"stage,omitempty"`
	Data       map[string]any `json:"data"`
	DurationMS *float64       `json:"duration_ms,omitempty"`
}

// Trace is the complete execution record for one task.
type Trace struct {
	TaskID      string  `json:"task_id"`
	StartedAt   string  `json:"started_at"`
	CompletedAt string  `json:"completed_at,omitempty"`
	Status      string  `json:"status"`
	TotalTokens int     `json:"total_tokens"`
	Events      []Event `json:"events"`
}

// EventOption decorates an event before it is appended.
type EventOption func(*Event)

// WithStage attaches the stage worker name to the event.
func WithStage(stage string) EventOption {
	return func(e *Event) { e.Stage = stage }
}

// WithDuration attaches a duration in milliseconds to the event.
func WithDuration(d time.Duration) EventOption {
	return func(e *Event) {
		ms := float64(d.Microseconds()) / 1000
		e.DurationMS = &ms
	}
}

// Tracer owns one trace at a time. Only the engine appends; events are never
// mutated after append.
type Tracer struct {
	mu     sync.Mutex
	dir    string
	trace  *Trace
	lastTS time.Time
	clock  func() time.Time
}

// NewTracer creates a tracer writing under dir.
func NewTracer(dir string) *Tracer {
	return &Tracer{dir: dir, clock: time.Now}
}

// Start begins a fresh trace for the given task, discarding any prior one.
func (t *Tracer) Start(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.trace = &Trace{
		TaskID:    taskID,
		StartedAt: now.Format(time.RFC3339Nano),
		Status:    "running",
	}
}

// AddEvent appends an event to the current trace. A no-op when no trace is
// active.
func (t *Tracer) AddEvent(kind string, data map[string]any, opts ...EventOption) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trace == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	ev := Event{
		Timestamp: t.now().Format(time.RFC3339Nano),
		Kind:      kind,
		Data:      data,
	}
	for _, opt := range opts {
		opt(&ev)
	}
	t.trace.Events = append(t.trace.Events, ev)
}

// SetTotalTokens records the cumulative token count on the trace record.
func (t *Tracer) SetTotalTokens(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trace != nil {
		t.trace.TotalTokens = n
	}
}

// Events returns a copy of the events appended so far.
func (t *Tracer) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trace == nil {
		return nil
	}
	out := make([]Event, len(t.trace.Events))
	copy(out, t.trace.Events)
	return out
}

// Complete appends the terminal execution_completed event, seals the trace
// with the given status, and writes it atomically to
// trace_<task_id>_<unix_seconds>.json under the output directory. Returns
// the written path.
func (t *Tracer) Complete(status string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trace == nil {
		return "", fmt.Errorf("op=tracing.Complete: no active trace")
	}
	t.trace.Events = append(t.trace.Events, Event{
		Timestamp: t.now().Format(time.RFC3339Nano),
		Kind:      EventExecutionCompleted,
		Data:      map[string]any{"status": status},
	})
	now := t.now()
	t.trace.CompletedAt = now.Format(time.RFC3339Nano)
	t.trace.Status = status

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", fmt.Errorf("op=tracing.Complete: %w", err)
	}
	name := fmt.Sprintf("trace_%s_%d.json", t.trace.TaskID, now.Unix())
	path := filepath.Join(t.dir, name)
	data, err := json.MarshalIndent(t.trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("op=tracing.Complete: %w", err)
	}
	// Write-then-rename so a crash never leaves a truncated trace behind.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("op=tracing.Complete: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("op=tracing.Complete: %w", err)
	}
	t.trace = nil
	t.lastTS = time.Time{}
	return path, nil
}

// now returns a UTC timestamp that never goes backwards within a trace.
func (t *Tracer) now() time.Time {
	ts := t.clock().UTC()
	if ts.Before(t.lastTS) {
		ts = t.lastTS
	}
	t.lastTS = ts
	return ts
}
