// Package main provides the benchmark entry point. It fans a batch of tasks
// through the pipeline with bounded parallelism and writes a run file under
// the experiments directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/adapter/observability"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/agent"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/benchmark"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/config"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/orchestrator"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/policy"
)

func main() {
	tasksFile := flag.String("tasks", "", "JSON file with the task batch")
	repository := flag.String("repo", "", "repository label for the run")
	concurrency := flag.Int("concurrency", 0, "parallel tasks (0 uses BENCH_CONCURRENCY)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	go serveMetrics(cfg.MetricsPort)

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	if *tasksFile == "" {
		slog.Error("missing required -tasks flag")
		os.Exit(1)
	}
	tasks, err := loadTasks(*tasksFile)
	if err != nil {
		slog.Error("task batch load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if *concurrency <= 0 {
		*concurrency = cfg.BenchConcurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := orchestrator.NewEngine(
		agent.StubRegistry(),
		policy.FromConfig(cfg),
		orchestrator.WithLogger(logger),
		orchestrator.WithTraceDir(cfg.TraceDir),
	)

	runner := benchmark.NewRunner(cfg.ExperimentsDir)
	run := runner.StartRun(*repository)
	slog.Info("benchmark run started",
		slog.String("run_id", run.RunID),
		slog.Int("tasks", len(tasks)),
		slog.Int("concurrency", *concurrency))

	fan := benchmark.NewFan(engine, *concurrency, logger)
	for _, res := range fan.Run(ctx, tasks) {
		runner.Record(res)
	}

	path, err := runner.CompleteRun()
	if err != nil {
		slog.Error("benchmark run save failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("benchmark run completed", slog.String("results", path))
}

func loadTasks(path string) ([]domain.TaskDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task batch: %w", err)
	}
	var tasks []domain.TaskDescriptor
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parse task batch: %w", err)
	}
	return tasks, nil
}

func serveMetrics(port int) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), r); err != nil {
		slog.Error("metrics server error", slog.Any("error", err))
	}
}
