package domain

// Stage identifies one state of the task execution pipeline.
type Stage string

// Pipeline states. Pending is the initial state; Complete and Failed are
// terminal. The six working states each have a dedicated stage worker.
const (
	StagePending  Stage = "pending"
	StageAnalyze  Stage = "analyze"
	StageAssess   Stage = "assess"
	StagePlan     Stage = "plan"
	StageGenerate Stage = "generate"
	StageReview   Stage = "review"
	StageValidate Stage = "validate"
	StageComplete Stage = "complete"
	StageFailed   Stage = "failed"
)

// WorkingStages lists the six working states in pipeline order.
var WorkingStages = []Stage{
	StageAnalyze,
	StageAssess,
	StagePlan,
	StageGenerate,
	StageReview,
	StageValidate,
}

// Stage worker names, keyed by working state. The host supplies one worker
// implementation per name.
const (
	WorkerIssueIntelligence = "issue_intelligence"
	WorkerImpactAssessment  = "impact_assessment"
	WorkerPlanner           = "planner"
	WorkerCodeGenerator     = "code_generator"
	WorkerPRReviewer        = "pr_reviewer"
	WorkerValidator         = "validator"
)

var stageWorkers = map[Stage]string{
	StageAnalyze:  WorkerIssueIntelligence,
	StageAssess:   WorkerImpactAssessment,
	StagePlan:     WorkerPlanner,
	StageGenerate: WorkerCodeGenerator,
	StageReview:   WorkerPRReviewer,
	StageValidate: WorkerValidator,
}

// WorkerName returns the stage worker name for a working state.
// The second return is false for Pending and the terminal states.
func (s Stage) WorkerName() (string, bool) {
	name, ok := stageWorkers[s]
	return name, ok
}

// IsTerminal reports whether the stage is Complete or Failed.
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageFailed
}

// IsWorking reports whether the stage has an associated stage worker.
func (s Stage) IsWorking() bool {
	_, ok := stageWorkers[s]
	return ok
}
