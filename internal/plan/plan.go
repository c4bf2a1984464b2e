// Package plan compiles an ordered step list into an artifact-based
// execution plan: which steps unblock which, where execution can enter,
// and where it ends.
//
// Building is a pure function of the step list. The same input always
// yields the same plan, so plan snapshots persisted at workflow start
// can be diffed across runs.
package plan

import (
	"fmt"
	"sort"

	"stepflow/internal/errors"
	"stepflow/internal/workflow"
)

// ExecutionPlan is the compiled form of a workflow definition.
type ExecutionPlan struct {
	// Steps maps step ID to its definition.
	Steps map[string]workflow.Step `json:"steps"`

	// Order is a deterministic topological ordering of all step IDs.
	Order []string `json:"order"`

	// Dependents is the forward dependency graph: each step mapped to
	// the steps that consume at least one artifact it creates.
	Dependents map[string][]string `json:"dependents"`

	// Producers maps each artifact name to the steps that create it.
	Producers map[string][]string `json:"producers"`

	// EntryPoints are steps with no required artifacts.
	EntryPoints []string `json:"entry_points"`

	// ExitPoints are steps with no explicit next step and no dependents.
	ExitPoints []string `json:"exit_points"`

	// Warnings lists non-fatal problems, e.g. a step requiring an
	// artifact no step ever creates. Such a step simply never unblocks.
	Warnings []string `json:"warnings,omitempty"`
}

// Build compiles the step list into an ExecutionPlan. It fails on
// duplicate step IDs, dangling Next references, and dependency cycles;
// unresolvable artifact requirements are warnings, not errors.
func Build(steps []workflow.Step) (*ExecutionPlan, error) {
	if len(steps) == 0 {
		return nil, errors.Wrap(errors.ErrPlanInvalid, "workflow has no steps")
	}

	stepMap := make(map[string]workflow.Step, len(steps))
	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		if step.ID == "" {
			return nil, errors.Wrap(errors.ErrPlanInvalid, "step with empty id")
		}
		if _, dup := stepMap[step.ID]; dup {
			return nil, errors.Wrapf(errors.ErrPlanInvalid, "duplicate step id %q", step.ID)
		}
		stepMap[step.ID] = step
		ids = append(ids, step.ID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		step := stepMap[id]
		if step.Next != "" {
			if _, ok := stepMap[step.Next]; !ok {
				return nil, errors.Wrapf(errors.ErrPlanInvalid, "step %q routes to unknown step %q", id, step.Next)
			}
		}
	}

	producers := buildProducers(stepMap, ids)
	dependents, warnings := buildDependents(stepMap, ids, producers)

	order, err := topologicalOrder(stepMap, ids, producers)
	if err != nil {
		return nil, err
	}

	var entries, exits []string
	for _, id := range ids {
		step := stepMap[id]
		if len(step.Requires) == 0 {
			entries = append(entries, id)
		}
		if step.Next == "" && len(dependents[id]) == 0 {
			exits = append(exits, id)
		}
	}

	return &ExecutionPlan{
		Steps:       stepMap,
		Order:       order,
		Dependents:  dependents,
		Producers:   producers,
		EntryPoints: entries,
		ExitPoints:  exits,
		Warnings:    warnings,
	}, nil
}

// buildProducers maps artifact names to their producing steps, in
// sorted step order.
func buildProducers(stepMap map[string]workflow.Step, ids []string) map[string][]string {
	producers := make(map[string][]string)
	for _, id := range ids {
		for _, artifact := range stepMap[id].Creates {
			producers[artifact] = append(producers[artifact], id)
		}
	}
	return producers
}

// buildDependents computes the forward graph and collects warnings for
// artifact requirements nothing produces.
func buildDependents(stepMap map[string]workflow.Step, ids []string, producers map[string][]string) (map[string][]string, []string) {
	dependents := make(map[string][]string, len(ids))
	var warnings []string

	for _, id := range ids {
		step := stepMap[id]
		seen := make(map[string]bool)
		for _, artifact := range step.Requires {
			prods := producers[artifact]
			if len(prods) == 0 {
				warnings = append(warnings,
					fmt.Sprintf("step %q requires artifact %q which no step creates", id, artifact))
				continue
			}
			for _, producer := range prods {
				if producer == id || seen[producer] {
					continue
				}
				seen[producer] = true
				dependents[producer] = append(dependents[producer], id)
			}
		}
	}

	for id := range dependents {
		sort.Strings(dependents[id])
	}
	sort.Strings(warnings)
	return dependents, warnings
}

// topologicalOrder produces a deterministic level-by-level ordering of
// the dependency DAG. Within each level, steps are ordered by ID. An
// incomplete ordering means a cycle.
func topologicalOrder(stepMap map[string]workflow.Step, ids []string, producers map[string][]string) ([]string, error) {
	// In-degree counts each distinct producing step once per consumer.
	inDegree := make(map[string]int, len(ids))
	forward := make(map[string][]string, len(ids))
	for _, id := range ids {
		inDegree[id] = 0
	}
	for _, id := range ids {
		seen := make(map[string]bool)
		for _, artifact := range stepMap[id].Requires {
			for _, producer := range producers[artifact] {
				if producer == id || seen[producer] {
					continue
				}
				seen[producer] = true
				inDegree[id]++
				forward[producer] = append(forward[producer], id)
			}
		}
	}

	var order []string
	var level []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			level = append(level, id)
		}
	}

	for len(level) > 0 {
		sort.Strings(level)
		order = append(order, level...)

		var next []string
		for _, id := range level {
			for _, dependent := range forward[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		level = next
	}

	if len(order) != len(ids) {
		var stuck []string
		for _, id := range ids {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, errors.Wrapf(errors.ErrDependencyCycle, "steps %v", stuck)
	}
	return order, nil
}

// Step returns the step definition by ID.
func (p *ExecutionPlan) Step(id string) (workflow.Step, error) {
	step, ok := p.Steps[id]
	if !ok {
		return workflow.Step{}, errors.Wrapf(errors.ErrStepNotFound, "%s", id)
	}
	return step, nil
}

// Successor returns the graph successor for a step: its explicit Next
// if set, otherwise its first dependent in plan order, otherwise empty
// (terminal).
func (p *ExecutionPlan) Successor(id string) string {
	step, ok := p.Steps[id]
	if !ok {
		return ""
	}
	if step.Next != "" {
		return step.Next
	}
	if deps := p.Dependents[id]; len(deps) > 0 {
		return deps[0]
	}
	return ""
}

// MissingArtifacts returns the artifacts a step still requires, given
// the currently available set. Used for blocked-workflow diagnostics.
func (p *ExecutionPlan) MissingArtifacts(id string, available map[string]workflow.Artifact) []string {
	step, ok := p.Steps[id]
	if !ok {
		return nil
	}
	var missing []string
	for _, artifact := range step.Requires {
		if _, ok := available[artifact]; !ok {
			missing = append(missing, artifact)
		}
	}
	sort.Strings(missing)
	return missing
}

// Size returns the number of steps in the plan.
func (p *ExecutionPlan) Size() int {
	return len(p.Steps)
}
