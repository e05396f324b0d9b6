package benchmark

// PatchMetrics evaluates a generated patch.
type PatchMetrics struct {
	LinesAdded       int     `json:"lines_added"`
	LinesRemoved     int     `json:"lines_removed"`
	FilesChanged     int     `json:"files_changed"`
	MinimalityScore  float64 `json:"minimality_score"`
	CorrectnessScore float64 `json:"correctness_score"`
}

// TotalChanges is the sum of added and removed lines.
func (m PatchMetrics) TotalChanges() int { return m.LinesAdded + m.LinesRemoved }

// ResolutionMetrics quantifies the quality of one task resolution.
type ResolutionMetrics struct {
	TaskID        string  `json:"task_id"`
	Resolved      bool    `json:"resolved"`
	TestsBefore   int     `json:"tests_before"`
	TestsAfter    int     `json:"tests_after"`
	PassingBefore int     `json:"passing_before"`
	PassingAfter  int     `json:"passing_after"`
	Regressions   int     `json:"regressions"`
	Fixes         int     `json:"fixes"`
	ExecutionTime float64 `json:"execution_time"`
	TokensUsed    int     `json:"tokens_used"`
}

// TestDelta is the change in passing tests across the resolution.
func (m ResolutionMetrics) TestDelta() int { return m.PassingAfter - m.PassingBefore }

// IsImprovement reports a net-positive resolution with no regressions.
func (m ResolutionMetrics) IsImprovement() bool { return m.TestDelta() > 0 && m.Regressions == 0 }

// PatchMinimality scores how close a patch stays to the estimated necessary
// change size. At or under the estimate scores 1.0; the score then decays by
// half the excess ratio.
func PatchMinimality(linesAdded, linesRemoved, estimatedNecessary int) float64 {
	total := linesAdded + linesRemoved
	if estimatedNecessary == 0 {
		if total == 0 {
			return 1.0
		}
		return 0.0
	}
	if total <= estimatedNecessary {
		return 1.0
	}
	excess := float64(total-estimatedNecessary) / float64(estimatedNecessary)
	return max(0.0, 1.0-excess*0.5)
}

// CorrectnessScore scores test outcomes after the fix. Each regression costs
// a fifth of the score; no tests at all yields an uncertain 0.5.
func CorrectnessScore(testsPassed, testsTotal, regressions int) float64 {
	if testsTotal == 0 {
		return 0.5
	}
	passRate := float64(testsPassed) / float64(testsTotal)
	penalty := min(1.0, float64(regressions)*0.2)
	return max(0.0, passRate-penalty)
}

// PRAcceptanceLikelihood estimates how likely a human maintainer is to
// accept the generated change. Quality and review scores are on a 0-100
// scale; each blocking issue removes 0.3 from the combined score.
func PRAcceptanceLikelihood(codeQualityScore float64, coverageAdequate bool, blockingIssues int, reviewScore float64) float64 {
	quality := codeQualityScore / 100
	review := reviewScore / 100
	coverage := 0.7
	if coverageAdequate {
		coverage = 1.0
	}
	base := quality*0.3 + review*0.4 + coverage*0.3
	penalty := min(1.0, float64(blockingIssues)*0.3)
	return max(0.0, base-penalty)
}

// AggregateRunMetrics rolls per-task resolution metrics up into run totals.
func AggregateRunMetrics(results []ResolutionMetrics) map[string]any {
	if len(results) == 0 {
		return map[string]any{"status": "no_results"}
	}

	var resolved, improvements, regressions, fixes, tokens int
	var totalTime float64
	for _, r := range results {
		if r.Resolved {
			resolved++
		}
		if r.IsImprovement() {
			improvements++
		}
		regressions += r.Regressions
		fixes += r.Fixes
		tokens += r.TokensUsed
		totalTime += r.ExecutionTime
	}

	total := float64(len(results))
	return map[string]any{
		"total_tasks":         len(results),
		"resolved":            resolved,
		"resolution_rate":     float64(resolved) / total,
		"improvements":        improvements,
		"improvement_rate":    float64(improvements) / total,
		"total_regressions":   regressions,
		"total_fixes":         fixes,
		"net_test_delta":      fixes - regressions,
		"total_tokens":        tokens,
		"avg_tokens_per_task": float64(tokens) / total,
		"total_time_seconds":  totalTime,
		"avg_time_per_task":   totalTime / total,
	}
}
