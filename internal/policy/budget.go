package policy

// BudgetPolicy bounds per-task token and cost consumption.
type BudgetPolicy struct {
	MaxTokensPerTask  int
	MaxTokensPerStage int
	MaxCostPerTaskUSD float64
	// Per-1K-token rates used for cost estimation.
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// DefaultBudgetPolicy returns the documented defaults.
func DefaultBudgetPolicy() BudgetPolicy {
	return BudgetPolicy{
		MaxTokensPerTask:  100000,
		MaxTokensPerStage: 25000,
		MaxCostPerTaskUSD: 5.0,
		InputCostPer1K:    0.00015,
		OutputCostPer1K:   0.0006,
	}
}

// CheckTokens reports whether current plus the additional estimate stays
// within the per-task token cap.
func (p BudgetPolicy) CheckTokens(current, additional int) bool {
	return current+additional <= p.MaxTokensPerTask
}

// CheckCost reports whether current plus the additional estimate stays
// within the per-task cost cap.
func (p BudgetPolicy) CheckCost(current, additional float64) bool {
	return current+additional <= p.MaxCostPerTaskUSD
}

// CheckStageTokens reports whether a single stage's reported usage stays
// within the per-stage cap.
func (p BudgetPolicy) CheckStageTokens(tokens int) bool {
	return tokens <= p.MaxTokensPerStage
}

// EstimateCost converts token counts to USD using the configured rates.
func (p BudgetPolicy) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*p.InputCostPer1K +
		float64(outputTokens)/1000*p.OutputCostPer1K
}
