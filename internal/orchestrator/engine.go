package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/adapter/observability"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/policy"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/tracing"
)

// Terminal status labels recorded on traces and metrics.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// estimationModel is the encoding used when a stage omits its token count
// and the engine has to estimate from the raw response.
const estimationModel = "gpt-4o-mini"

// Engine drives a task through the stage pipeline to a terminal state. It is
// the only retry site: stage workers are plain functions and never wrap
// themselves in retry or timeout logic.
//
// An Engine is safe for concurrent Process calls; every call owns its own
// context, state machine, and tracer.
type Engine struct {
	workers  domain.WorkerRegistry
	policies *policy.Manager
	traceDir string
	logger   *slog.Logger
	counter  *tokencount.Counter
	otel     oteltrace.Tracer
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTraceDir sets the directory trace files are written to.
func WithTraceDir(dir string) Option {
	return func(e *Engine) { e.traceDir = dir }
}

// NewEngine constructs an engine over the given worker registry and
// policies.
func NewEngine(workers domain.WorkerRegistry, policies *policy.Manager, opts ...Option) *Engine {
	e := &Engine{
		workers:  workers,
		policies: policies,
		traceDir: "traces",
		logger:   slog.Default(),
		counter:  tokencount.NewCounter(),
		otel:     otel.Tracer("swe-agent-orchestrator/engine"),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process drives one task to a terminal state. It never returns an error:
// fatal conditions are recorded on the context's error list and surface as
// FinalState == StageFailed. A completed trace file is written either way.
func (e *Engine) Process(ctx context.Context, task domain.TaskDescriptor) *domain.TaskContext {
	taskID := task.TaskID
	if taskID == "" {
		taskID = taskIDFromURL(task.SourceURL)
	}
	execID := ulid.Make().String()
	log := e.logger.With(
		slog.String("task_id", taskID),
		slog.String("execution_id", execID),
		slog.String("repository", task.Repository),
	)

	tc := domain.NewTaskContext(task)
	tc.TaskID = taskID
	sm := NewStateMachine(e.policies)
	tr := tracing.NewTracer(e.traceDir)
	tr.Start(taskID)
	tr.AddEvent(tracing.EventExecutionStarted, map[string]any{
		"source_url":   task.SourceURL,
		"repository":   task.Repository,
		"execution_id": execID,
	})
	log.Info("starting task processing")

	ctx, cancel := context.WithTimeout(ctx, e.policies.Timeout.For(policy.OpWholeTask))
	defer cancel()

	if err := sm.Transition(domain.StageAnalyze, tc); err != nil {
		tc.AddError(err.Error())
		e.fail(sm, tc)
	} else {
		e.traceTransition(tr, domain.StagePending, domain.StageAnalyze, "linear")
	}

	for !sm.IsTerminal() {
		stage := sm.Current()
		name, _ := stage.WorkerName()
		worker, ok := e.workers[name]
		if !ok {
			tc.AddError(fmt.Sprintf("stage worker not registered: %s", name))
			log.Error("stage worker not registered", slog.String("worker", name))
			e.fail(sm, tc)
			break
		}

		out, duration, err := e.runStage(ctx, name, worker, tc, tr)
		if err != nil {
			tc.AddError(fmt.Sprintf("%s: %v", name, err))
			e.fail(sm, tc)
			break
		}

		tokens := e.mergeOutput(stage, name, tc, out, duration, tr)
		if !e.policies.Budget.CheckStageTokens(tokens) {
			tc.AddError(fmt.Sprintf("%s: stage token cap exceeded (%d): %v",
				name, tokens, domain.ErrBudgetExceeded))
			e.fail(sm, tc)
			break
		}

		if err := e.advance(sm, stage, tc, tr); err != nil {
			tc.AddError(err.Error())
			e.fail(sm, tc)
			break
		}
	}

	status := StatusFailed
	if sm.Current() == domain.StageComplete {
		status = StatusSuccess
	}
	tc.FinalState = sm.Current()
	tr.SetTotalTokens(tc.TokensUsed)
	path, err := tr.Complete(status)
	if err != nil {
		log.Error("trace write failed", slog.Any("error", err))
	} else {
		log.Info("task processing finished",
			slog.String("status", status),
			slog.Int("tokens_used", tc.TokensUsed),
			slog.Int("retry_count", tc.RetryCount),
			slog.String("trace", path))
	}
	observability.TasksTotal.WithLabelValues(status).Inc()
	return tc
}

// runStage invokes one stage worker under the retry policy. It emits
// stage_started for every attempt and stage_failed for every failed one;
// the caller emits stage_completed after merging a successful output.
func (e *Engine) runStage(
	ctx context.Context,
	name string,
	worker domain.StageWorker,
	tc *domain.TaskContext,
	tr *tracing.Tracer,
) (domain.StageOutput, time.Duration, error) {
	log := e.logger.With(slog.String("worker", name), slog.String("task_id", tc.TaskID))
	start := time.Now()

	for attempt := 0; ; attempt++ {
		if !e.policies.Budget.CheckTokens(tc.TokensUsed, 0) {
			return nil, 0, fmt.Errorf("token budget exhausted before %s: %w", name, domain.ErrBudgetExceeded)
		}
		if !e.policies.Budget.CheckCost(tc.CostUSD, 0) {
			return nil, 0, fmt.Errorf("cost budget exhausted before %s: %w", name, domain.ErrBudgetExceeded)
		}

		tr.AddEvent(tracing.EventStageStarted, map[string]any{"attempt": attempt}, tracing.WithStage(name))
		out, err := e.invokeWorker(ctx, name, worker, tc)
		if err == nil && !out.Success() && out.Retryable() {
			// Structured worker failure flagged retryable: feed it through
			// the same retry classification as a raised error.
			err = fmt.Errorf("%s: %w", out.ErrorMessage(), domain.ErrStageRetryable)
		}
		if err == nil {
			// Includes success=false with retryable=false: that is a final
			// stage outcome, and the outgoing guard decides what it means.
			return out, time.Since(start), nil
		}

		tr.AddEvent(tracing.EventStageFailed,
			map[string]any{"attempt": attempt, "error": err.Error()},
			tracing.WithStage(name))
		log.Warn("stage attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))

		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("%s interrupted: %w", name, domain.ErrDeadlineExceeded)
		}
		if !e.policies.Retry.ShouldRetry(attempt, err) {
			return nil, 0, fmt.Errorf("%s failed after %d attempts: %w", name, attempt+1, err)
		}

		rateLimited := domain.IsRateLimit(err)
		delay := e.policies.Retry.Delay(attempt, rateLimited)
		if rateLimited {
			log.Info("rate limit hit; backing off",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
		}
		if serr := e.sleep(ctx, delay); serr != nil {
			return nil, 0, fmt.Errorf("%s backoff interrupted: %w", name, domain.ErrDeadlineExceeded)
		}
		tc.RetryCount++
		observability.StageRetriesTotal.WithLabelValues(name).Inc()
	}
}

// invokeWorker runs the worker under the per-stage deadline. A per-stage
// timeout surfaces as a retryable upstream timeout; expiry of the whole-task
// deadline surfaces as the non-retryable deadline error.
func (e *Engine) invokeWorker(
	parent context.Context,
	name string,
	worker domain.StageWorker,
	tc *domain.TaskContext,
) (domain.StageOutput, error) {
	sctx, cancel := context.WithTimeout(parent, e.policies.Timeout.For(policy.OpStageWorker))
	defer cancel()
	sctx, span := e.otel.Start(sctx, "stage."+name)
	defer span.End()

	type result struct {
		out domain.StageOutput
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := worker.Run(sctx, tc)
		ch <- result{out: out, err: err}
	}()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-sctx.Done():
		if parent.Err() != nil {
			return nil, fmt.Errorf("%s: %w", name, domain.ErrDeadlineExceeded)
		}
		return nil, fmt.Errorf("%s timed out: %w", name, domain.ErrUpstreamTimeout)
	}
}

// mergeOutput writes the stage slot, updates the counters, and emits the
// stage_completed and budget_checkpoint events. Returns the token count
// attributed to this stage visit.
func (e *Engine) mergeOutput(
	stage domain.Stage,
	name string,
	tc *domain.TaskContext,
	out domain.StageOutput,
	duration time.Duration,
	tr *tracing.Tracer,
) int {
	tc.SetSlot(stage, out)

	tokens := out.TokensUsed()
	approximate := false
	if tokens == 0 {
		if raw := out.String("raw_response"); raw != "" {
			tokens, approximate = e.counter.Estimate(raw, estimationModel)
		}
	}
	inputTokens := out.Int("input_tokens")
	outputTokens := out.Int("output_tokens")
	if inputTokens == 0 && outputTokens == 0 {
		outputTokens = tokens
	}
	tc.TokensUsed += tokens
	tc.CostUSD += e.policies.Budget.EstimateCost(inputTokens, outputTokens)

	data := map[string]any{
		"result":      "success",
		"tokens_used": tokens,
		"output":      out,
	}
	if approximate {
		data["token_estimate"] = "approximate"
	}
	tr.AddEvent(tracing.EventStageCompleted, data,
		tracing.WithStage(name), tracing.WithDuration(duration))
	tr.AddEvent(tracing.EventBudgetCheckpoint, map[string]any{
		"tokens":   tc.TokensUsed,
		"cost_usd": tc.CostUSD,
	})

	observability.StageCompletionsTotal.WithLabelValues(name).Inc()
	observability.StageDuration.WithLabelValues(name).Observe(duration.Seconds())
	observability.TokensUsedTotal.Add(float64(tokens))
	return tokens
}

// linear forward progression per stage.
var nextLinear = map[domain.Stage]domain.Stage{
	domain.StageAnalyze:  domain.StageAssess,
	domain.StageAssess:   domain.StagePlan,
	domain.StagePlan:     domain.StageGenerate,
	domain.StageGenerate: domain.StageReview,
	domain.StageReview:   domain.StageValidate,
	domain.StageValidate: domain.StageComplete,
}

// advance selects and performs the next transition: rework back to Generate
// when Review or Validate says so, linear forward otherwise. A guard denial
// is a legitimate policy stop, reported as an error for the failure path.
func (e *Engine) advance(
	sm *StateMachine,
	stage domain.Stage,
	tc *domain.TaskContext,
	tr *tracing.Tracer,
) error {
	target := nextLinear[stage]
	reason := "linear"
	switch {
	case stage == domain.StageReview && tc.Slot(domain.StageReview).Bool("requires_changes"):
		target = domain.StageGenerate
		reason = "rework"
	case stage == domain.StageValidate && !tc.Slot(domain.StageValidate).Bool("tests_passed"):
		target = domain.StageGenerate
		reason = "rework"
	}

	if err := sm.Transition(target, tc); err != nil {
		if errors.Is(err, domain.ErrGuardDenied) {
			if reason == "rework" {
				return fmt.Errorf("rework budget exhausted after %d reworks: %w",
					tc.RetryCount, domain.ErrGuardDenied)
			}
			return fmt.Errorf("advance from %s to %s denied: %w", stage, target, err)
		}
		return err
	}
	if reason == "rework" {
		tc.RetryCount++
		observability.ReworksTotal.Inc()
	}
	e.traceTransition(tr, stage, target, reason)
	return nil
}

func (e *Engine) traceTransition(tr *tracing.Tracer, from, to domain.Stage, reason string) {
	tr.AddEvent(tracing.EventTransition, map[string]any{
		"from":   string(from),
		"to":     string(to),
		"reason": reason,
	})
}

// fail moves the machine to Failed from whatever non-terminal state it is in.
func (e *Engine) fail(sm *StateMachine, tc *domain.TaskContext) {
	if !sm.IsTerminal() {
		_ = sm.Transition(domain.StageFailed, tc)
	}
}

// taskIDFromURL extracts the trailing path segment of a source URL.
func taskIDFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
