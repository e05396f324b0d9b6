// Package main provides the orchestrator entry point. It runs a single task
// through the staged pipeline and exits 0 on completion, 1 on failure.
package main

import (
	"context"
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
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/config"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/orchestrator"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/policy"
)

func main() {
	issueURL := flag.String("issue", "", "issue URL to resolve")
	repository := flag.String("repo", "", "repository in owner/repo form")
	policyFile := flag.String("policy-file", "", "optional YAML policy overrides")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if *policyFile != "" {
		pf, err := config.LoadPolicyFile(*policyFile)
		if err != nil {
			slog.Error("policy file load failed", slog.Any("error", err))
			os.Exit(1)
		}
		pf.Apply(&cfg)
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

	if *issueURL == "" {
		slog.Error("missing required -issue flag")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := orchestrator.NewEngine(
		agent.StubRegistry(),
		policy.FromConfig(cfg),
		orchestrator.WithLogger(logger),
		orchestrator.WithTraceDir(cfg.TraceDir),
	)

	task := domain.TaskDescriptor{
		SourceURL:  *issueURL,
		Repository: *repository,
	}
	tc := engine.Process(ctx, task)

	slog.Info("task finished",
		slog.String("task_id", tc.TaskID),
		slog.String("final_state", string(tc.FinalState)),
		slog.Int("tokens_used", tc.TokensUsed),
		slog.Float64("cost_usd", tc.CostUSD))

	if tc.FinalState != domain.StageComplete {
		os.Exit(1)
	}
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
