// Package manifest loads workflow definitions from YAML. Routing
// strings are parsed into typed destinations at load time; execution
// never re-parses them.
package manifest

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stepflow/internal/errors"
	"stepflow/internal/plan"
	"stepflow/internal/workflow"
)

// Workflow is a loaded, validated workflow definition.
type Workflow struct {
	Name        string
	Description string
	Steps       []workflow.Step
}

// Compile builds the execution plan for this workflow.
func (w *Workflow) Compile() (*plan.ExecutionPlan, error) {
	return plan.Build(w.Steps)
}

// document is the YAML schema of a workflow file.
type document struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Steps       []rawStep `yaml:"steps"`
}

// rawStep mirrors workflow.Step with routing still in string form.
type rawStep struct {
	ID       string         `yaml:"id"`
	Agent    string         `yaml:"agent"`
	Action   string         `yaml:"action"`
	Requires []string       `yaml:"requires,omitempty"`
	Creates  []string       `yaml:"creates,omitempty"`
	Next     string         `yaml:"next,omitempty"`
	Gate     *rawGate       `yaml:"gate,omitempty"`
	Retry    *rawRetry      `yaml:"retry,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// rawGate is the YAML form of a gate configuration. on_pass and on_fail
// accept "next", "end", or a step ID.
type rawGate struct {
	OnPass      string             `yaml:"on_pass,omitempty"`
	OnFail      string             `yaml:"on_fail,omitempty"`
	RetryOnFail bool               `yaml:"retry_on_fail,omitempty"`
	MaxRetries  int                `yaml:"max_retries,omitempty"`
	Thresholds  map[string]float64 `yaml:"thresholds,omitempty"`
}

type rawRetry struct {
	MaxRetries       int  `yaml:"max_retries,omitempty"`
	SkipOnFail       bool `yaml:"skip_on_fail,omitempty"`
	ErrorRecoverable bool `yaml:"error_recoverable,omitempty"`
}

// Load reads and parses a workflow file.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return w, nil
}

// Parse decodes a workflow definition. Unknown fields are rejected so a
// typo in a manifest fails loudly instead of being silently ignored.
func Parse(data []byte) (*Workflow, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrPlanInvalid, err.Error())
	}

	if doc.Name == "" {
		return nil, errors.Wrap(errors.ErrPlanInvalid, "workflow has no name")
	}
	if len(doc.Steps) == 0 {
		return nil, errors.Wrap(errors.ErrPlanInvalid, "workflow has no steps")
	}

	steps := make([]workflow.Step, 0, len(doc.Steps))
	for i, raw := range doc.Steps {
		step, err := convertStep(i, raw)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	// Compile once at load time so structural problems (duplicate IDs,
	// cycles, dangling routes) surface before a run starts.
	if _, err := plan.Build(steps); err != nil {
		return nil, err
	}

	return &Workflow{
		Name:        doc.Name,
		Description: doc.Description,
		Steps:       steps,
	}, nil
}

// convertStep validates one raw step and resolves its routing strings.
func convertStep(index int, raw rawStep) (workflow.Step, error) {
	if raw.ID == "" {
		return workflow.Step{}, errors.Wrapf(errors.ErrPlanInvalid, "step %d has no id", index)
	}
	if raw.Agent == "" {
		return workflow.Step{}, errors.Wrapf(errors.ErrPlanInvalid, "step %q has no agent", raw.ID)
	}
	if raw.Action == "" {
		return workflow.Step{}, errors.Wrapf(errors.ErrPlanInvalid, "step %q has no action", raw.ID)
	}

	step := workflow.Step{
		ID:       raw.ID,
		Agent:    raw.Agent,
		Action:   raw.Action,
		Requires: raw.Requires,
		Creates:  raw.Creates,
		Next:     raw.Next,
		Metadata: raw.Metadata,
	}

	if raw.Gate != nil {
		step.Gate = &workflow.GateConfig{
			OnPass:      workflow.ParseDestination(raw.Gate.OnPass),
			OnFail:      workflow.ParseDestination(raw.Gate.OnFail),
			OnFailSet:   raw.Gate.OnFail != "",
			RetryOnFail: raw.Gate.RetryOnFail,
			MaxRetries:  raw.Gate.MaxRetries,
			Thresholds:  raw.Gate.Thresholds,
		}
	}
	if raw.Retry != nil {
		step.Retry = &workflow.RetryConfig{
			MaxRetries:       raw.Retry.MaxRetries,
			SkipOnFail:       raw.Retry.SkipOnFail,
			ErrorRecoverable: raw.Retry.ErrorRecoverable,
		}
	}
	return step, nil
}
