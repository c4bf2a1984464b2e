// Package progression implements the auto-progression state machine:
// given a step's outcome (success or failure) and an optional gate
// verdict, it decides whether the workflow continues, retries, skips,
// pauses, or aborts, and records every decision in an append-only
// history that can be replayed as an audit trail.
package progression

import "time"

// Action is the progression verdict for a completed step.
type Action string

const (
	// ActionContinue advances the workflow.
	ActionContinue Action = "continue"

	// ActionSkip abandons the step and continues without its artifacts.
	ActionSkip Action = "skip"

	// ActionRetry re-queues the step after the decision's backoff.
	ActionRetry Action = "retry"

	// ActionAbort fails the whole workflow.
	ActionAbort Action = "abort"

	// ActionPause suspends scheduling until an external resume.
	ActionPause Action = "pause"
)

// Decision is the progression manager's answer for one step completion.
type Decision struct {
	// Action drives the scheduler's next move.
	Action Action `json:"action"`

	// NextStepID optionally overrides graph routing, e.g. a gate's
	// on-fail destination looping back to a remediation step.
	NextStepID string `json:"next_step_id,omitempty"`

	// Terminal indicates a gate routed to an end destination: stop
	// scheduling even though steps may remain.
	Terminal bool `json:"terminal,omitempty"`

	// Reason explains the decision for logs and audit.
	Reason string `json:"reason"`

	// RetryCount is the step's attempt counter after this decision.
	RetryCount int `json:"retry_count"`

	// Backoff is the delay the caller must apply before the next
	// scheduling pass when Action is ActionRetry.
	Backoff time.Duration `json:"backoff,omitempty"`
}
