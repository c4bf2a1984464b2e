// Package workflow defines the core data model for stepflow workflows:
// steps, artifacts, gate and retry configuration, and the mutable
// per-run WorkflowState.
//
// Steps and their configuration are immutable once a run starts. Only
// WorkflowState (and its append-only StepExecution log) is written during
// execution, and only by the scheduler's coordinator loop.
package workflow

import "time"

// Step is a single unit of work in a workflow definition.
//
// Dependency resolution is keyed on artifact availability, not step
// identity: a step becomes ready once every name in Requires has been
// produced by some completed step.
type Step struct {
	// ID uniquely identifies the step within a workflow.
	ID string `yaml:"id" json:"id"`

	// Agent identifies the external collaborator that executes this step.
	Agent string `yaml:"agent" json:"agent"`

	// Action is the operation the agent performs.
	Action string `yaml:"action" json:"action"`

	// Requires lists artifact names that must be available before the
	// step can run.
	Requires []string `yaml:"requires,omitempty" json:"requires,omitempty"`

	// Creates lists artifact names this step produces on success.
	Creates []string `yaml:"creates,omitempty" json:"creates,omitempty"`

	// Next optionally names the step to advance to after success.
	// Empty means follow the dependency graph.
	Next string `yaml:"next,omitempty" json:"next,omitempty"`

	// Gate optionally attaches a quality gate evaluated after the step
	// completes successfully.
	Gate *GateConfig `yaml:"gate,omitempty" json:"gate,omitempty"`

	// Retry optionally configures failure handling for this step.
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`

	// Metadata carries arbitrary step annotations for executors.
	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// GateConfig attaches a quality checkpoint to a step.
type GateConfig struct {
	// OnPass is where execution routes when the gate passes.
	OnPass Destination `yaml:"-" json:"on_pass"`

	// OnFail is where execution routes when the gate fails. A terminal
	// destination (the zero value is next-in-graph) with RetryOnFail
	// unset aborts the workflow.
	OnFail Destination `yaml:"-" json:"on_fail"`

	// OnFailSet records whether the manifest configured an explicit
	// failure route. Without it, a failed gate retries or aborts.
	OnFailSet bool `yaml:"-" json:"on_fail_set"`

	// RetryOnFail allows the step to be re-executed when the gate fails
	// and no failure route is configured.
	RetryOnFail bool `yaml:"retry_on_fail,omitempty" json:"retry_on_fail,omitempty"`

	// MaxRetries bounds gate-triggered retries. Zero uses the
	// scheduler-wide default.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// Thresholds optionally overrides the workflow-wide quality
	// thresholds for this gate. Keys are metric names, values are raw
	// (pre-normalization) threshold scores.
	Thresholds map[string]float64 `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
}

// RetryConfig controls how a step's execution failures are handled.
type RetryConfig struct {
	// MaxRetries is the number of re-executions allowed after the first
	// failure. Zero uses the scheduler-wide default.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// SkipOnFail marks the step skippable: after retries are exhausted
	// the workflow continues without its artifacts.
	SkipOnFail bool `yaml:"skip_on_fail,omitempty" json:"skip_on_fail,omitempty"`

	// ErrorRecoverable marks the step's failure as tolerable: the
	// workflow continues in a degraded state, treating the step as
	// completed without artifacts.
	ErrorRecoverable bool `yaml:"error_recoverable,omitempty" json:"error_recoverable,omitempty"`
}

// Artifact is a named output produced by a step. Artifacts are the
// dependency currency between steps.
type Artifact struct {
	Name      string    `json:"name"`
	Data      any       `json:"data,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ExecStatus is the state of a single step execution attempt.
type ExecStatus string

const (
	// ExecRunning indicates the attempt is in flight.
	ExecRunning ExecStatus = "running"

	// ExecCompleted indicates the attempt finished successfully.
	ExecCompleted ExecStatus = "completed"

	// ExecFailed indicates the attempt failed.
	ExecFailed ExecStatus = "failed"
)

// StepExecution is a per-attempt record. Records are appended to
// WorkflowState.StepExecutions and never mutated after completion,
// forming an audit log that supports replay.
type StepExecution struct {
	StepID          string     `json:"step_id"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Status          ExecStatus `json:"status"`
	Error           string     `json:"error,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
}
