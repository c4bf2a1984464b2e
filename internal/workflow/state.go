package workflow

import (
	"time"
)

// Status is the lifecycle state of a workflow run.
type Status string

const (
	// StatusRunning indicates the workflow is actively scheduling steps.
	StatusRunning Status = "running"

	// StatusPaused indicates scheduling is suspended between rounds.
	StatusPaused Status = "paused"

	// StatusCompleted indicates all steps reached a terminal state
	// successfully.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the workflow aborted.
	StatusFailed Status = "failed"
)

// String returns the string representation of the workflow status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// State is the mutable per-run workflow state. It has a single writer:
// the scheduler's coordinator loop. All other components receive it by
// reference and return decisions instead of mutating it.
type State struct {
	WorkflowID     string              `json:"workflow_id"`
	Status         Status              `json:"status"`
	CurrentStep    string              `json:"current_step,omitempty"`
	CompletedSteps []string            `json:"completed_steps"`
	SkippedSteps   []string            `json:"skipped_steps,omitempty"`
	Artifacts      map[string]Artifact `json:"artifacts"`
	Variables      map[string]any      `json:"variables,omitempty"`
	StepExecutions []StepExecution     `json:"step_executions"`
	Error          string              `json:"error,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NewState creates the state for a fresh workflow run positioned at the
// given entry step.
func NewState(workflowID, entryStep string) *State {
	now := time.Now().UTC()
	return &State{
		WorkflowID:     workflowID,
		Status:         StatusRunning,
		CurrentStep:    entryStep,
		CompletedSteps: []string{},
		Artifacts:      make(map[string]Artifact),
		Variables:      make(map[string]any),
		StepExecutions: []StepExecution{},
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

// IsCompleted reports whether the step has completed successfully.
func (s *State) IsCompleted(stepID string) bool {
	for _, id := range s.CompletedSteps {
		if id == stepID {
			return true
		}
	}
	return false
}

// IsSkipped reports whether the step was skipped.
func (s *State) IsSkipped(stepID string) bool {
	for _, id := range s.SkippedSteps {
		if id == stepID {
			return true
		}
	}
	return false
}

// MarkCompleted appends the step to the ordered completion set. Marking
// an already-completed step is a no-op.
func (s *State) MarkCompleted(stepID string) {
	if s.IsCompleted(stepID) {
		return
	}
	s.CompletedSteps = append(s.CompletedSteps, stepID)
	s.UpdatedAt = time.Now().UTC()
}

// UnmarkCompleted removes the step from the completion set so it
// re-enters the ready set on the next scheduling pass. Used for RETRY.
func (s *State) UnmarkCompleted(stepID string) {
	for i, id := range s.CompletedSteps {
		if id == stepID {
			s.CompletedSteps = append(s.CompletedSteps[:i], s.CompletedSteps[i+1:]...)
			s.UpdatedAt = time.Now().UTC()
			return
		}
	}
}

// MarkSkipped records the step as skipped.
func (s *State) MarkSkipped(stepID string) {
	if s.IsSkipped(stepID) {
		return
	}
	s.SkippedSteps = append(s.SkippedSteps, stepID)
	s.UpdatedAt = time.Now().UTC()
}

// MergeArtifacts records artifacts produced by a completed step. An
// artifact name produced twice keeps the most recent value.
func (s *State) MergeArtifacts(stepID string, artifacts map[string]any) {
	now := time.Now().UTC()
	for name, data := range artifacts {
		s.Artifacts[name] = Artifact{
			Name:      name,
			Data:      data,
			CreatedBy: stepID,
			CreatedAt: now,
		}
	}
	s.UpdatedAt = now
}

// HasArtifact reports whether the named artifact is available.
func (s *State) HasArtifact(name string) bool {
	_, ok := s.Artifacts[name]
	return ok
}

// BeginExecution appends a running StepExecution record and returns its
// index for later completion.
func (s *State) BeginExecution(stepID string) int {
	s.StepExecutions = append(s.StepExecutions, StepExecution{
		StepID:    stepID,
		StartedAt: time.Now().UTC(),
		Status:    ExecRunning,
	})
	s.UpdatedAt = time.Now().UTC()
	return len(s.StepExecutions) - 1
}

// FinishExecution completes the StepExecution record at the given index.
// Once completed the record is never mutated again.
func (s *State) FinishExecution(index int, status ExecStatus, execErr error) {
	if index < 0 || index >= len(s.StepExecutions) {
		return
	}
	rec := &s.StepExecutions[index]
	now := time.Now().UTC()
	rec.CompletedAt = &now
	rec.Status = status
	rec.DurationSeconds = now.Sub(rec.StartedAt).Seconds()
	if execErr != nil {
		rec.Error = execErr.Error()
	}
	s.UpdatedAt = now
}

// ExecutionsFor returns the attempt records for a step, oldest first.
func (s *State) ExecutionsFor(stepID string) []StepExecution {
	var out []StepExecution
	for _, rec := range s.StepExecutions {
		if rec.StepID == stepID {
			out = append(out, rec)
		}
	}
	return out
}

// SetVariable records a named value in the state's variable map.
// Gate results and review outcomes are stored here between steps.
func (s *State) SetVariable(key string, value any) {
	if s.Variables == nil {
		s.Variables = make(map[string]any)
	}
	s.Variables[key] = value
	s.UpdatedAt = time.Now().UTC()
}

// Fail marks the workflow failed with the given terminal error.
func (s *State) Fail(err error) {
	s.Status = StatusFailed
	if err != nil {
		s.Error = err.Error()
	}
	s.UpdatedAt = time.Now().UTC()
}

// Complete marks the workflow successfully completed.
func (s *State) Complete() {
	s.Status = StatusCompleted
	s.CurrentStep = ""
	s.UpdatedAt = time.Now().UTC()
}
