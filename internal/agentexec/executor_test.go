package agentexec

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"stepflow/internal/errors"
	"stepflow/internal/workflow"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests shell out to /bin/sh")
	}
}

func shAgent(script string) Command {
	return Command{Path: "/bin/sh", Args: []string{"-c", script}}
}

func TestExecuteParsesJSONArtifacts(t *testing.T) {
	requireShell(t)

	e := New(nil)
	e.RegisterAgent("dev", shAgent(`echo '{"artifacts":{"code":"package main"}}'`))

	step := workflow.Step{ID: "implement", Agent: "dev", Action: "implement", Creates: []string{"code"}}
	state := workflow.NewState("wf", "implement")

	artifacts, err := e.Execute(context.Background(), step, state)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if artifacts["code"] != "package main" {
		t.Errorf("artifacts = %v", artifacts)
	}
}

func TestExecuteFallsBackToRawOutput(t *testing.T) {
	requireShell(t)

	e := New(nil)
	e.RegisterAgent("writer", shAgent(`echo 'plain text result'`))

	step := workflow.Step{ID: "draft", Agent: "writer", Action: "write", Creates: []string{"summary"}}
	state := workflow.NewState("wf", "draft")

	artifacts, err := e.Execute(context.Background(), step, state)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if artifacts["summary"] != "plain text result" {
		t.Errorf("summary = %q, want the trimmed stdout", artifacts["summary"])
	}
}

func TestExecutePlaceholderSubstitution(t *testing.T) {
	requireShell(t)

	e := New(nil)
	e.RegisterAgent("echoer", Command{
		Path: "/bin/sh",
		Args: []string{"-c", `echo "$0 $1"`, "{action}", "{step}"},
	})

	step := workflow.Step{ID: "review", Agent: "echoer", Action: "inspect", Creates: []string{"out"}}
	state := workflow.NewState("wf", "review")

	artifacts, err := e.Execute(context.Background(), step, state)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if artifacts["out"] != "inspect review" {
		t.Errorf("out = %q, want substituted action and step", artifacts["out"])
	}
}

func TestExecuteNonZeroExitIsStepError(t *testing.T) {
	requireShell(t)

	e := New(nil)
	e.RegisterAgent("broken", shAgent(`echo 'compiler crashed' >&2; exit 1`))

	step := workflow.Step{ID: "build", Agent: "broken", Action: "build"}
	state := workflow.NewState("wf", "build")

	_, err := e.Execute(context.Background(), step, state)
	var stepErr *errors.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error = %T (%v), want StepError", err, err)
	}
	if !errors.IsRetryable(err) {
		t.Errorf("agent exit failures should be retryable")
	}
	if got := err.Error(); !strings.Contains(got, "compiler crashed") {
		t.Errorf("error should carry stderr, got %q", got)
	}
}

func TestExecuteContextDeadline(t *testing.T) {
	requireShell(t)

	e := New(nil)
	e.RegisterAgent("slow", shAgent(`sleep 5`))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	step := workflow.Step{ID: "slow-step", Agent: "slow", Action: "wait"}
	state := workflow.NewState("wf", "slow-step")

	_, err := e.Execute(ctx, step, state)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}

func TestExecuteUnknownAgent(t *testing.T) {
	e := New(nil)

	step := workflow.Step{ID: "x", Agent: "ghost", Action: "y"}
	state := workflow.NewState("wf", "x")

	_, err := e.Execute(context.Background(), step, state)
	var notFound *errors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %T, want NotFoundError", err)
	}
	if notFound.ResourceID != "ghost" {
		t.Errorf("ResourceID = %q", notFound.ResourceID)
	}
}

func TestExecutePassesRequiredArtifactData(t *testing.T) {
	requireShell(t)

	// The agent echoes its stdin back, so the payload lands in the
	// produced artifact and can be inspected.
	e := New(nil)
	e.RegisterAgent("mirror", shAgent(`cat`))

	step := workflow.Step{ID: "consume", Agent: "mirror", Action: "use", Requires: []string{"doc"}, Creates: []string{"echo"}}
	state := workflow.NewState("wf", "consume")
	state.MergeArtifacts("produce", map[string]any{"doc": "design v1"})

	artifacts, err := e.Execute(context.Background(), step, state)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	raw, _ := artifacts["echo"].(string)
	if !strings.Contains(raw, "design v1") {
		t.Errorf("payload should include required artifact data, got %q", raw)
	}
	if !strings.Contains(raw, `"workflow_id":"wf"`) {
		t.Errorf("payload should include the workflow ID, got %q", raw)
	}
}

func TestAgents(t *testing.T) {
	e := New(nil)
	e.RegisterAgent("a", shAgent("true"))
	e.RegisterAgent("b", shAgent("true"))

	if got := len(e.Agents()); got != 2 {
		t.Errorf("Agents() = %d entries, want 2", got)
	}
}
