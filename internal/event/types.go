// Package event defines the notification bus and event types for stepflow.
// Events decouple the scheduler from observers (CLI rendering, log sinks,
// external tooling): delivery is best-effort and a misbehaving subscriber
// never aborts the workflow.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "step.started", "gate.evaluated").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// CorrelationID returns the ID tying this event to a workflow run.
	CorrelationID() string
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType     string
	timestamp     time.Time
	correlationID string
}

func (e baseEvent) EventType() string     { return e.eventType }
func (e baseEvent) Timestamp() time.Time  { return e.timestamp }
func (e baseEvent) CorrelationID() string { return e.correlationID }

// newBaseEvent creates a baseEvent with the current time and a fresh
// correlation ID when none is supplied.
func newBaseEvent(eventType, correlationID string) baseEvent {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return baseEvent{
		eventType:     eventType,
		timestamp:     time.Now().UTC(),
		correlationID: correlationID,
	}
}

// -----------------------------------------------------------------------------
// Step Lifecycle Events
// -----------------------------------------------------------------------------

// StepStartedEvent is emitted when a step is dispatched to its executor.
type StepStartedEvent struct {
	baseEvent
	WorkflowID string // Workflow run the step belongs to
	StepID     string // Step being executed
	Agent      string // Collaborator executing the step
	Attempt    int    // 1-based attempt number
}

// NewStepStartedEvent creates a StepStartedEvent.
func NewStepStartedEvent(workflowID, correlationID, stepID, agent string, attempt int) StepStartedEvent {
	return StepStartedEvent{
		baseEvent:  newBaseEvent("step.started", correlationID),
		WorkflowID: workflowID,
		StepID:     stepID,
		Agent:      agent,
		Attempt:    attempt,
	}
}

// StepCompletedEvent is emitted when a step finishes successfully.
type StepCompletedEvent struct {
	baseEvent
	WorkflowID string
	StepID     string
	Artifacts  []string // Names of artifacts the step produced
	Duration   time.Duration
}

// NewStepCompletedEvent creates a StepCompletedEvent.
func NewStepCompletedEvent(workflowID, correlationID, stepID string, artifacts []string, duration time.Duration) StepCompletedEvent {
	return StepCompletedEvent{
		baseEvent:  newBaseEvent("step.completed", correlationID),
		WorkflowID: workflowID,
		StepID:     stepID,
		Artifacts:  artifacts,
		Duration:   duration,
	}
}

// StepFailedEvent is emitted when a step execution fails.
type StepFailedEvent struct {
	baseEvent
	WorkflowID  string
	StepID      string
	Error       string // Failure description
	RetriesLeft int    // Remaining retry budget at failure time
}

// NewStepFailedEvent creates a StepFailedEvent.
func NewStepFailedEvent(workflowID, correlationID, stepID, errMsg string, retriesLeft int) StepFailedEvent {
	return StepFailedEvent{
		baseEvent:   newBaseEvent("step.failed", correlationID),
		WorkflowID:  workflowID,
		StepID:      stepID,
		Error:       errMsg,
		RetriesLeft: retriesLeft,
	}
}

// -----------------------------------------------------------------------------
// Gate Events
// -----------------------------------------------------------------------------

// GateEvaluatedEvent is emitted after a composite gate evaluation.
type GateEvaluatedEvent struct {
	baseEvent
	WorkflowID string
	StepID     string   // Step the gate is attached to
	Passed     bool     // Final gate verdict
	HardFail   bool     // Terminal failure (critical issues / verification)
	SoftFail   bool     // Remediation-eligible failure
	Reasons    []string // Evaluator reasons, empty on pass
}

// NewGateEvaluatedEvent creates a GateEvaluatedEvent.
func NewGateEvaluatedEvent(workflowID, correlationID, stepID string, passed, hardFail, softFail bool, reasons []string) GateEvaluatedEvent {
	return GateEvaluatedEvent{
		baseEvent:  newBaseEvent("gate.evaluated", correlationID),
		WorkflowID: workflowID,
		StepID:     stepID,
		Passed:     passed,
		HardFail:   hardFail,
		SoftFail:   softFail,
		Reasons:    reasons,
	}
}

// -----------------------------------------------------------------------------
// Workflow Lifecycle Events
// -----------------------------------------------------------------------------

// WorkflowCompletedEvent is emitted when every step reached a terminal
// state successfully.
type WorkflowCompletedEvent struct {
	baseEvent
	WorkflowID     string
	CompletedSteps int
	SkippedSteps   int
	Duration       time.Duration
}

// NewWorkflowCompletedEvent creates a WorkflowCompletedEvent.
func NewWorkflowCompletedEvent(workflowID, correlationID string, completed, skipped int, duration time.Duration) WorkflowCompletedEvent {
	return WorkflowCompletedEvent{
		baseEvent:      newBaseEvent("workflow.completed", correlationID),
		WorkflowID:     workflowID,
		CompletedSteps: completed,
		SkippedSteps:   skipped,
		Duration:       duration,
	}
}

// WorkflowFailedEvent is emitted when a workflow aborts.
type WorkflowFailedEvent struct {
	baseEvent
	WorkflowID string
	StepID     string // Step that triggered the failure, if any
	Error      string // Terminal error description
}

// NewWorkflowFailedEvent creates a WorkflowFailedEvent.
func NewWorkflowFailedEvent(workflowID, correlationID, stepID, errMsg string) WorkflowFailedEvent {
	return WorkflowFailedEvent{
		baseEvent:  newBaseEvent("workflow.failed", correlationID),
		WorkflowID: workflowID,
		StepID:     stepID,
		Error:      errMsg,
	}
}
