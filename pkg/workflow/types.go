// Package workflow implements a resumable, auditable workflow execution
// engine for long-running processes that need human-in-the-loop input.
//
// An instance progresses through a named step graph. A step that is missing a
// required input pauses the run with a prompt; a later resume supplies the
// input and re-derives progress by traversing the graph again from the entry
// step. Every run updates an audit projection and appends to a per-instance
// event log.
package workflow

import "time"

// Status of a workflow instance
type Status string

const (
	// StatusInProgress means the instance is active and not waiting on input
	StatusInProgress Status = "in_progress"

	// StatusPaused means the instance is waiting on external input. It only
	// ever appears on the audit metadata, never on raw execution state.
	StatusPaused Status = "paused"

	// StatusCompleted means the instance reached its successful terminal step
	StatusCompleted Status = "completed"

	// StatusAborted means the instance reached its cancellation terminal step
	StatusAborted Status = "aborted"
)

// EventKind identifies a lifecycle event in an instance's event log
type EventKind string

const (
	EventCreated       EventKind = "created"
	EventResumeCommand EventKind = "resume_command"
	EventPaused        EventKind = "paused"
	EventCompleted     EventKind = "completed"
	EventAborted       EventKind = "aborted"
	EventProgressed    EventKind = "progressed"
)

// ExecutionState is the raw, engine-owned state of one workflow instance
type ExecutionState struct {
	InstanceID   string `json:"instance_id"`
	CustomerID   string `json:"customer_id"`
	WorkflowName string `json:"workflow_name"`

	// Bag accumulates every human/external input ever supplied to the
	// instance. Keys are only added or overwritten, never removed.
	Bag map[string]interface{} `json:"bag"`

	// Meta is the transient run metadata written by step functions
	Meta StateMeta `json:"meta"`
}

// StateMeta is the per-run metadata embedded in execution state. Its status
// never takes the value "paused"; pausing is reported through the audit
// metadata instead.
type StateMeta struct {
	Status    Status     `json:"status,omitempty"`
	LastNode  string     `json:"last_node,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// InstanceMeta is the audit-facing projection of one instance, derived from
// execution state after every run.
type InstanceMeta struct {
	InstanceID   string     `json:"instance_id"`
	CustomerID   string     `json:"customer_id"`
	WorkflowName string     `json:"workflow_name"`
	StartedBy    string     `json:"started_by"`
	LastActor    string     `json:"last_actor,omitempty"`
	Status       Status     `json:"status"`
	LastNode     string     `json:"last_node,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`

	// StepsHistory is append-only: a new record is added whenever the
	// instance's last node differs from the most recent record's node.
	StepsHistory []StepRecord `json:"steps_history"`
}

// StepRecord is one entry in an instance's step history
type StepRecord struct {
	Timestamp time.Time `json:"ts"`
	Node      string    `json:"node"`
	Actor     string    `json:"actor"`
	Status    Status    `json:"status"`
}

// Event is one immutable entry in an instance's append-only event log
type Event struct {
	Timestamp  time.Time              `json:"ts"`
	InstanceID string                 `json:"instance_id"`
	Event      EventKind              `json:"event"`
	Node       string                 `json:"node,omitempty"`
	Status     Status                 `json:"status"`
	Actor      string                 `json:"actor,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Summary is the outcome of one engine run, discriminated by Status:
// paused carries Prompt, completed/aborted carry Node and Result,
// in_progress carries Node.
type Summary struct {
	Status     Status      `json:"status"`
	InstanceID string      `json:"instance_id"`
	Node       string      `json:"node,omitempty"`
	Prompt     string      `json:"prompt,omitempty"`
	Result     interface{} `json:"result,omitempty"`
}

// ListFilters narrows ListInstances results. Zero-valued fields match
// everything; set fields are exact-match and AND-combined.
type ListFilters struct {
	CustomerID   string
	Status       Status
	StartedBy    string
	WorkflowName string
}
