package models

import "time"

// TaskStatus represents the current state of a task node.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been admitted yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates all dependencies completed and the task awaits a slot.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusRunning indicates the task handler is in flight.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task exhausted its retries.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the run was cancelled before the task settled.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusRunning,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transition is possible within a run.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskPayload is the work description carried by a task node.
type TaskPayload struct {
	// Kind selects the typed parameter record.
	Kind TaskKind `json:"kind"`
	// Description is the human readable summary of the work.
	Description string `json:"description,omitempty"`
	// Params holds the kind-specific parameters.
	Params Params `json:"-"`
	// Dependencies lists node IDs that must complete first.
	Dependencies []string `json:"dependencies,omitempty"`
	// Priority orders simultaneously ready tasks, higher first.
	Priority int `json:"priority"`
}

// ParamCount returns the number of parameters set on the payload.
func (p TaskPayload) ParamCount() int {
	if p.Params == nil {
		return 0
	}
	return p.Params.Len()
}

// TaskNode is one vertex of an execution graph.
// It is owned by a single executor run and reset between runs.
type TaskNode struct {
	// ID is unique within the run.
	ID string `json:"id"`
	// Task is the payload handed to the execution function.
	Task TaskPayload `json:"task"`
	// Status is the current state of the node.
	Status TaskStatus `json:"status"`
	// Dependents lists IDs of nodes that depend on this one.
	Dependents []string `json:"dependents,omitempty"`
	// Retries counts re-executions after a failed attempt.
	Retries int `json:"retries"`
	// MaxRetries bounds Retries.
	MaxRetries int `json:"max_retries"`
	// StartTime is when the first attempt started.
	StartTime time.Time `json:"start_time,omitempty"`
	// EndTime is when the node settled.
	EndTime time.Time `json:"end_time,omitempty"`
	// Result is the handler's return value on success.
	Result any `json:"result,omitempty"`
	// Error is the last failure, if any.
	Error error `json:"-"`
}

// Duration returns the wall time between start and end, or zero if unsettled.
func (n *TaskNode) Duration() time.Duration {
	if n.StartTime.IsZero() || n.EndTime.IsZero() {
		return 0
	}
	return n.EndTime.Sub(n.StartTime)
}
