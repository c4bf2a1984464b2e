package scheduler

import (
	"stepflow/internal/plan"
	"stepflow/internal/workflow"
)

// FindReadySteps returns the steps eligible for dispatch: not completed,
// not skipped, not currently running, and with every required artifact
// available. Results follow the plan's deterministic order, so the same
// state always yields the same ready set.
func FindReadySteps(p *plan.ExecutionPlan, state *workflow.State, running map[string]bool) []string {
	var ready []string
	for _, id := range p.Order {
		if state.IsCompleted(id) || state.IsSkipped(id) || running[id] {
			continue
		}
		if satisfied(p.Steps[id], state) {
			ready = append(ready, id)
		}
	}
	return ready
}

// satisfied reports whether every artifact the step requires exists.
func satisfied(step workflow.Step, state *workflow.State) bool {
	for _, artifact := range step.Requires {
		if !state.HasArtifact(artifact) {
			return false
		}
	}
	return true
}

// pendingSteps returns the steps that are neither completed nor skipped.
func pendingSteps(p *plan.ExecutionPlan, state *workflow.State) []string {
	var pending []string
	for _, id := range p.Order {
		if !state.IsCompleted(id) && !state.IsSkipped(id) {
			pending = append(pending, id)
		}
	}
	return pending
}
