package workflow

import (
	"time"

	"rjdctl/internal/errors"
	"rjdctl/internal/types"
)

// Status is the lifecycle of one asynchronous operation
type Status string

const (
	StatusIdle      Status = "idle"
	StatusInFlight  Status = "in_flight"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Trigger is the outcome of asking the session to run an operation
type Trigger string

const (
	// TriggerIgnored means a precondition was not met and nothing changed
	TriggerIgnored Trigger = "ignored"
	// TriggerBusy means the same operation is already in flight
	TriggerBusy Trigger = "busy"
	// TriggerRan means the operation was started. Blocking calls return it
	// once the operation finished, successfully or not.
	TriggerRan Trigger = "ran"
)

// Operation names used in logs, events and metrics
const (
	OperationAnalysis = "analysis"
	OperationReport   = "report"
)

// OperationState is the tagged status of an operation. Err is set only when
// Status is StatusFailed.
type OperationState struct {
	Status     Status    `json:"status"`
	Err        error     `json:"-"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Reason describes the failure, or is empty
func (s OperationState) Reason() string {
	if s.Err == nil {
		return ""
	}
	if appErr, ok := errors.As(s.Err); ok {
		return appErr.Message
	}
	return s.Err.Error()
}

// Code is the AppError code of the failure, or empty
func (s OperationState) Code() string {
	if s.Err == nil {
		return ""
	}
	return errors.CodeOf(s.Err)
}

// Duration is the wall time of a finished operation
func (s OperationState) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Snapshot is a consistent copy of the session state
type Snapshot struct {
	Resume         *types.SelectedResume
	JobDescription string
	Analysis       OperationState
	Report         OperationState
	Result         *types.AnalysisResult
	Location       *types.ReportLocation
	Epoch          uint64
}

// Observer is told about every status transition
type Observer func(operation string, state OperationState)
