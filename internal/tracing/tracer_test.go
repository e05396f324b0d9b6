package tracing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerWritesCompletedTrace(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracer(dir)

	tr.Start("task-1")
	tr.AddEvent(EventExecutionStarted, map[string]any{"source_url": "u"})
	tr.AddEvent(EventStageStarted, map[string]any{"attempt": 0}, WithStage("issue_intelligence"))
	tr.AddEvent(EventStageCompleted, map[string]any{"result": "success"},
		WithStage("issue_intelligence"), WithDuration(1500*time.Millisecond))
	tr.SetTotalTokens(850)

	path, err := tr.Complete("success")
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "trace_task-1_")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Trace
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "task-1", got.TaskID)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, 850, got.TotalTokens)
	require.Len(t, got.Events, 4, "terminal event appended by Complete")
	assert.Equal(t, EventExecutionCompleted, got.Events[3].Kind)
	assert.Equal(t, "success", got.Events[3].Data["status"])

	completed := got.Events[2]
	assert.Equal(t, "issue_intelligence", completed.Stage)
	require.NotNil(t, completed.DurationMS)
	assert.InDelta(t, 1500.0, *completed.DurationMS, 0.001)
}

func TestTracerMonotonicTimestamps(t *testing.T) {
	tr := NewTracer(t.TempDir())
	// A clock that jumps backwards must not produce out-of-order events.
	times := []time.Time{
		time.Date(2026, 1, 1, 10, 0, 2, 0, time.UTC),
		time.Date(2026, 1, 1, 10, 0, 1, 0, time.UTC),
		time.Date(2026, 1, 1, 10, 0, 3, 0, time.UTC),
	}
	i := 0
	tr.clock = func() time.Time {
		ts := times[i%len(times)]
		i++
		return ts
	}

	tr.Start("task-2")
	tr.AddEvent(EventStageStarted, nil)
	tr.AddEvent(EventStageCompleted, nil)

	events := tr.Events()
	require.Len(t, events, 2)
	first, err := time.Parse(time.RFC3339Nano, events[0].Timestamp)
	require.NoError(t, err)
	second, err := time.Parse(time.RFC3339Nano, events[1].Timestamp)
	require.NoError(t, err)
	assert.False(t, second.Before(first))
}

func TestTracerNoActiveTrace(t *testing.T) {
	tr := NewTracer(t.TempDir())

	tr.AddEvent(EventStageStarted, nil)
	assert.Nil(t, tr.Events())

	_, err := tr.Complete("success")
	assert.Error(t, err)
}

func TestTracerStartDiscardsPriorTrace(t *testing.T) {
	tr := NewTracer(t.TempDir())
	tr.Start("old")
	tr.AddEvent(EventStageStarted, nil)

	tr.Start("new")
	assert.Empty(t, tr.Events())
}

func TestMetricsCollectorSummary(t *testing.T) {
	c := NewMetricsCollector()
	c.Record("stage_duration", 2)
	c.Record("stage_duration", 4)
	c.Record("stage_duration", 9)
	c.Record("tokens", 850)

	summary := c.Summary()
	require.Contains(t, summary, "stage_duration")
	s := summary["stage_duration"]
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 15.0, s.Sum)
	assert.Equal(t, 5.0, s.Mean)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.Equal(t, 1, summary["tokens"].Count)
}

func TestMetricsCollectorEmpty(t *testing.T) {
	c := NewMetricsCollector()
	assert.Empty(t, c.Summary())
}
