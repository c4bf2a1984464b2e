// Package agentexec runs workflow steps as external agent subprocesses.
// Each agent name maps to a command template; the step payload goes to
// the process on stdin as JSON and artifacts come back on stdout.
package agentexec

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"sync"

	"stepflow/internal/errors"
	"stepflow/internal/logging"
	"stepflow/internal/workflow"
)

// Command describes how to invoke one agent.
type Command struct {
	// Path is the executable to run.
	Path string

	// Args are passed verbatim. The placeholders {action} and {step}
	// are replaced with the step's action and ID.
	Args []string

	// Env entries are appended to the inherited environment.
	Env []string

	// Dir is the working directory. Empty inherits the current one.
	Dir string
}

// payload is what the agent process receives on stdin.
type payload struct {
	WorkflowID string         `json:"workflow_id"`
	Step       workflow.Step  `json:"step"`
	Artifacts  map[string]any `json:"artifacts,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
}

// response is what the agent process writes to stdout.
type response struct {
	Artifacts map[string]any `json:"artifacts,omitempty"`
}

// Executor dispatches steps to agent subprocesses. It implements the
// registry Executor contract and is safe for concurrent use.
type Executor struct {
	mu       sync.RWMutex
	commands map[string]Command
	logger   *logging.Logger
}

// New creates an executor with no agents registered.
func New(logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{
		commands: make(map[string]Command),
		logger:   logger.WithPhase("exec"),
	}
}

// RegisterAgent binds a command to an agent name.
func (e *Executor) RegisterAgent(agent string, cmd Command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands[agent] = cmd
}

// Agents returns the registered agent names.
func (e *Executor) Agents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.commands))
	for agent := range e.commands {
		out = append(out, agent)
	}
	return out
}

// Execute runs the step's agent as a subprocess. The context deadline
// kills the process; a non-zero exit is a retryable step failure.
func (e *Executor) Execute(ctx context.Context, step workflow.Step, state *workflow.State) (map[string]any, error) {
	e.mu.RLock()
	cmd, ok := e.commands[step.Agent]
	e.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError("agent", step.Agent)
	}

	input, err := json.Marshal(payload{
		WorkflowID: state.WorkflowID,
		Step:       step,
		Artifacts:  artifactData(step, state),
		Variables:  state.Variables,
	})
	if err != nil {
		return nil, errors.NewStepError("marshal step payload", err).
			WithStepID(step.ID).WithRetryable(false)
	}

	args := make([]string, len(cmd.Args))
	for i, arg := range cmd.Args {
		arg = strings.ReplaceAll(arg, "{action}", step.Action)
		arg = strings.ReplaceAll(arg, "{step}", step.ID)
		args[i] = arg
	}

	proc := exec.CommandContext(ctx, cmd.Path, args...)
	proc.Dir = cmd.Dir
	proc.Env = append(os.Environ(), cmd.Env...)
	proc.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	log := e.logger.WithStep(step.ID)
	log.Debug("agent process starting", "agent", step.Agent, "path", cmd.Path)

	if err := proc.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.NewStepError("agent exited with error", errors.New(msg)).
			WithStepID(step.ID)
	}

	artifacts, err := parseArtifacts(step, stdout.Bytes())
	if err != nil {
		return nil, err
	}
	log.Debug("agent process finished", "artifacts", len(artifacts))
	return artifacts, nil
}

// artifactData extracts the data of the artifacts the step requires, so
// the agent sees its inputs without the bookkeeping wrapper.
func artifactData(step workflow.Step, state *workflow.State) map[string]any {
	if len(step.Requires) == 0 {
		return nil
	}
	out := make(map[string]any, len(step.Requires))
	for _, name := range step.Requires {
		if artifact, ok := state.Artifacts[name]; ok {
			out[name] = artifact.Data
		}
	}
	return out
}

// parseArtifacts decodes the agent's stdout. Declared artifacts the
// agent did not return are filled with the raw output so the dependency
// graph still advances for agents that emit plain text.
func parseArtifacts(step workflow.Step, output []byte) (map[string]any, error) {
	artifacts := make(map[string]any)

	trimmed := bytes.TrimSpace(output)
	if len(trimmed) > 0 {
		var resp response
		if err := json.Unmarshal(trimmed, &resp); err == nil && resp.Artifacts != nil {
			for name, data := range resp.Artifacts {
				artifacts[name] = data
			}
		}
	}

	for _, name := range step.Creates {
		if _, ok := artifacts[name]; !ok {
			artifacts[name] = string(trimmed)
		}
	}
	return artifacts, nil
}
