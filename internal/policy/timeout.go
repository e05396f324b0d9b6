package policy

import "time"

// Operation names a timeout category.
type Operation string

// Timeout categories.
const (
	OpStageWorker Operation = "stage_worker"
	OpRemoteAPI   Operation = "remote_api"
	OpTestRunner  Operation = "test_runner"
	OpWholeTask   Operation = "whole_task"
)

// TimeoutPolicy maps operation categories to deadlines.
type TimeoutPolicy struct {
	StageWorker time.Duration
	RemoteAPI   time.Duration
	TestRunner  time.Duration
	WholeTask   time.Duration
}

// DefaultTimeoutPolicy returns the documented defaults.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		StageWorker: 300 * time.Second,
		RemoteAPI:   30 * time.Second,
		TestRunner:  600 * time.Second,
		WholeTask:   3600 * time.Second,
	}
}

// For returns the deadline for the given category. Unknown categories fall
// back to the stage worker timeout.
func (p TimeoutPolicy) For(op Operation) time.Duration {
	switch op {
	case OpStageWorker:
		return p.StageWorker
	case OpRemoteAPI:
		return p.RemoteAPI
	case OpTestRunner:
		return p.TestRunner
	case OpWholeTask:
		return p.WholeTask
	default:
		return p.StageWorker
	}
}
