// Package events defines the event stream shared by the executor and the tool mask.
// Event names and payload shapes are the contract with the host UI.
package events

import (
	"time"

	"github.com/ShayCichocki/intentflow/pkg/models"
)

// Type represents the kind of event.
type Type string

const (
	// TaskStarted is emitted before every attempt of a task.
	TaskStarted Type = "task-started"
	// TaskCompleted is emitted when a task succeeds.
	TaskCompleted Type = "task-completed"
	// TaskFailed is emitted when a task exhausts its retries.
	TaskFailed Type = "task-failed"
	// ExecutionStarted is emitted when an execution pass begins.
	ExecutionStarted Type = "execution-started"
	// Progress is emitted each time a task settles.
	Progress Type = "progress"
	// ExecutionCompleted is emitted when an execution pass ends normally.
	ExecutionCompleted Type = "execution-completed"
	// ExecutionCancelled is emitted when an execution pass is cancelled.
	ExecutionCancelled Type = "execution-cancelled"
	// MaskChanged is emitted on every effective tool availability change.
	MaskChanged Type = "mask-changed"
	// StateChanged is emitted when the tool mask state machine transitions.
	StateChanged Type = "state-changed"
)

// Event is a single notification. Only the fields relevant to Type are set.
type Event struct {
	// Type is the kind of event.
	Type Type
	// RunID identifies the execution pass, for executor events.
	RunID string
	// TaskID is the node ID for task events.
	TaskID string
	// Task is the node payload for task events.
	Task *models.TaskPayload
	// Attempt is the 1-based attempt number for task-started.
	Attempt int
	// Result is the handler result for task-completed.
	Result any
	// Error is the failure for task-failed.
	Error error
	// Tool is the tool name for mask-changed.
	Tool string
	// Available is the new availability for mask-changed.
	Available bool
	// State is the new state for state-changed.
	State string
	// Counts carries tallies for progress and execution events.
	Counts *Counts
	// Timestamp is when the event was emitted.
	Timestamp time.Time
}

// Counts tallies task outcomes for progress and execution events.
type Counts struct {
	Total     int
	Completed int
	Failed    int
	Cancelled int
	// Percent is the share of settled tasks, 0..100.
	Percent float64
}
