// Package scheduler runs a compiled execution plan to completion. The
// coordinator is the single writer of workflow state: each round it
// selects the ready steps, dispatches them as a parallel batch, waits at
// the join barrier, and merges results sequentially. Executors, scorers
// and verifiers run concurrently but never touch state; they return
// values the coordinator merges.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"stepflow/internal/checkpoint"
	"stepflow/internal/errors"
	"stepflow/internal/event"
	"stepflow/internal/gate"
	"stepflow/internal/logging"
	"stepflow/internal/plan"
	"stepflow/internal/progression"
	"stepflow/internal/registry"
	"stepflow/internal/remediation"
	"stepflow/internal/workflow"
)

// Scheduler defaults.
const (
	// DefaultMaxParallel is the batch size ceiling per scheduling round.
	DefaultMaxParallel = 8

	// DefaultStepTimeout bounds a single step execution attempt.
	DefaultStepTimeout = 10 * time.Minute
)

// Config tunes the coordinator.
type Config struct {
	// MaxParallel caps how many ready steps one round dispatches.
	MaxParallel int

	// StepTimeout bounds each step execution attempt individually.
	StepTimeout time.Duration

	// WorkflowTimeout bounds the whole run. Zero defaults to twice the
	// step timeout.
	WorkflowTimeout time.Duration
}

// Deps are the coordinator's collaborators. Nil fields get inert
// defaults so tests can wire only what they exercise.
type Deps struct {
	Registry    *registry.Registry
	Bus         *event.Bus
	Store       *checkpoint.Store
	Logger      *logging.Logger
	Progression progression.Config
	GateConfig  gate.CompositeConfig
	Thresholds  gate.QualityThresholds
}

// stepResult is what one batch worker hands back to the merge phase.
type stepResult struct {
	stepID    string
	execIndex int
	artifacts map[string]any
	scores    map[string]float64
	issues    *remediation.Manifest
	gate      *gate.CompositeResult
	execErr   error
	duration  time.Duration
}

// Coordinator owns a single workflow run.
type Coordinator struct {
	cfg    Config
	plan   *plan.ExecutionPlan
	state  *workflow.State
	reg    *registry.Registry
	bus    *event.Bus
	store  *checkpoint.Store
	logger *logging.Logger
	prog   *progression.Manager

	gateCfg    gate.CompositeConfig
	thresholds gate.QualityThresholds

	// baseline holds the score map from the last passing gate, used for
	// regression detection on later gates.
	baseline map[string]float64

	// loops tracks the bounded remediation loop per gated step.
	loops map[string]*remediation.Loop

	// manifests holds each gated step's last issue manifest, for the
	// remediation loop's regression guard.
	manifests map[string]*remediation.Manifest

	// nextEligible delays retried steps until their backoff expires.
	nextEligible map[string]time.Time

	// gateHolds maps a soft-failed gated step to the remediation step it
	// routed to. The gated step is held out of the ready set until the
	// target finishes, then re-runs so its gate is re-evaluated.
	gateHolds map[string]string

	mu       sync.Mutex
	paused   bool
	resumeCh chan struct{}
	skips    map[string]string // step ID -> operator reason
}

// New creates a coordinator for one run. The plan and state are owned
// by the coordinator from this point on.
func New(cfg Config, p *plan.ExecutionPlan, state *workflow.State, deps Deps) *Coordinator {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	if cfg.WorkflowTimeout <= 0 {
		cfg.WorkflowTimeout = 2 * cfg.StepTimeout
	}

	if deps.Registry == nil {
		deps.Registry = registry.New()
	}
	if deps.Bus == nil {
		deps.Bus = event.NewBus()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Thresholds == (gate.QualityThresholds{}) {
		deps.Thresholds = gate.DefaultThresholds()
	}

	return &Coordinator{
		cfg:          cfg,
		plan:         p,
		state:        state,
		reg:          deps.Registry,
		bus:          deps.Bus,
		store:        deps.Store,
		logger:       deps.Logger.WithWorkflow(state.WorkflowID).WithPhase("scheduling"),
		prog:         progression.NewManager(deps.Progression, deps.Logger),
		gateCfg:      deps.GateConfig,
		thresholds:   deps.Thresholds,
		loops:        make(map[string]*remediation.Loop),
		manifests:    make(map[string]*remediation.Manifest),
		nextEligible: make(map[string]time.Time),
		gateHolds:    make(map[string]string),
		resumeCh:     make(chan struct{}),
		skips:        make(map[string]string),
	}
}

// Progression exposes the run's progression manager, mainly for
// checkpoint restore and inspection.
func (c *Coordinator) Progression() *progression.Manager {
	return c.prog
}

// Run executes the plan until every step reaches a terminal state, a
// decision aborts the run, or the workflow deadline expires.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx = registry.NewContext(ctx, c.reg)
	runCtx, cancel := context.WithTimeout(ctx, c.cfg.WorkflowTimeout)
	defer cancel()

	if c.store != nil {
		if err := c.store.SavePlan(c.plan); err != nil {
			return c.fail("", errors.Wrap(err, "persist plan snapshot"))
		}
	}

	c.logger.Info("workflow started",
		"steps", c.plan.Size(),
		"max_parallel", c.cfg.MaxParallel,
		"workflow_timeout", c.cfg.WorkflowTimeout.String())

	for {
		if err := c.waitIfPaused(runCtx); err != nil {
			return c.fail("", c.deadlineError(runCtx, err))
		}
		c.applySkips()

		pending := pendingSteps(c.plan, c.state)
		if len(pending) == 0 {
			return c.complete()
		}

		batch, wait, err := c.selectBatch(pending)
		if err != nil {
			return c.fail("", err)
		}
		if len(batch) == 0 {
			select {
			case <-runCtx.Done():
				return c.fail("", c.deadlineError(runCtx, runCtx.Err()))
			case <-time.After(wait):
			}
			continue
		}

		results := c.dispatch(runCtx, batch)

		for _, res := range results {
			done, err := c.merge(res)
			if err != nil {
				return c.fail(res.stepID, err)
			}
			if done {
				return c.complete()
			}
		}

		if err := c.checkpointState(); err != nil {
			return c.fail("", err)
		}

		if runCtx.Err() != nil {
			return c.fail("", c.deadlineError(runCtx, runCtx.Err()))
		}
	}
}

// selectBatch picks the next dispatch batch from the ready set, honoring
// retry backoff delays and the parallelism cap. When nothing is ready it
// either returns the wait until the earliest delayed step becomes
// eligible, or a blocked diagnostic when no step can ever unblock.
func (c *Coordinator) selectBatch(pending []string) ([]string, time.Duration, error) {
	ready := FindReadySteps(c.plan, c.state, nil)

	now := time.Now()
	var batch []string
	var earliest time.Time
	for _, id := range ready {
		if _, held := c.gateHolds[id]; held {
			continue
		}
		if eligible, delayed := c.nextEligible[id]; delayed && now.Before(eligible) {
			if earliest.IsZero() || eligible.Before(earliest) {
				earliest = eligible
			}
			continue
		}
		delete(c.nextEligible, id)
		batch = append(batch, id)
		if len(batch) == c.cfg.MaxParallel {
			break
		}
	}

	if len(batch) > 0 {
		return batch, 0, nil
	}
	if !earliest.IsZero() {
		return nil, time.Until(earliest), nil
	}

	// Nothing ready, nothing delayed: the run is deadlocked. Report
	// exactly what each pending step is waiting on.
	missing := make(map[string][]string, len(pending))
	for _, id := range pending {
		missing[id] = c.plan.MissingArtifacts(id, c.state.Artifacts)
	}
	return nil, 0, errors.NewBlockedError(missing)
}

// dispatch runs the batch in parallel and waits at the join barrier.
// Execution records are opened here, before workers start, so the
// coordinator stays the only state writer.
func (c *Coordinator) dispatch(ctx context.Context, batch []string) []stepResult {
	results := make([]stepResult, len(batch))

	indices := make(map[string]int, len(batch))
	for _, id := range batch {
		indices[id] = c.state.BeginExecution(id)
		attempt := c.prog.Retries(id) + 1
		step := c.plan.Steps[id]
		c.bus.Publish(event.NewStepStartedEvent(
			c.state.WorkflowID, c.state.WorkflowID, id, step.Agent, attempt))
		c.logger.WithStep(id).Info("step dispatched", "agent", step.Agent, "attempt", attempt)
	}

	workers := pool.New().WithMaxGoroutines(c.cfg.MaxParallel)
	for i, id := range batch {
		i, id := i, id
		workers.Go(func() {
			results[i] = c.runStep(ctx, c.plan.Steps[id], indices[id])
		})
	}
	workers.Wait()
	return results
}

// runStep executes one step under its own timeout and, on success,
// evaluates its gate. Runs inside a batch worker: read-only on state.
func (c *Coordinator) runStep(ctx context.Context, step workflow.Step, execIndex int) stepResult {
	res := stepResult{stepID: step.ID, execIndex: execIndex}
	started := time.Now()
	defer func() { res.duration = time.Since(started) }()

	stepCtx, cancel := context.WithTimeout(ctx, c.cfg.StepTimeout)
	defer cancel()

	exec, err := c.reg.Executor(step.Agent)
	if err != nil {
		res.execErr = errors.NewStepError("no executor for agent", err).
			WithStepID(step.ID).WithRetryable(false)
		return res
	}

	artifacts, err := exec.Execute(stepCtx, step, c.state)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.NewTimeoutError("step execution", c.cfg.StepTimeout).WithCause(err)
		}
		res.execErr = errors.NewStepError("execution failed", err).WithStepID(step.ID)
		return res
	}
	res.artifacts = artifacts

	if step.Gate != nil {
		res.gate, res.scores, res.issues, res.execErr = c.evaluateGate(stepCtx, step)
	}
	return res
}

// evaluateGate collects scores and issues from every registered scorer,
// runs the verifiers, and evaluates the composite gate with the step's
// threshold overrides applied.
func (c *Coordinator) evaluateGate(ctx context.Context, step workflow.Step) (*gate.CompositeResult, map[string]float64, *remediation.Manifest, error) {
	var scores map[string]float64
	manifest := remediation.NewManifest()

	for _, scorer := range c.reg.Scorers() {
		s, issues, err := scorer.Score(ctx, step, c.state)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "scoring step %q", step.ID)
		}
		for key, value := range s {
			if scores == nil {
				scores = make(map[string]float64)
			}
			scores[key] = value
		}
		if issues != nil {
			manifest.Add(issues.Issues()...)
		}
	}

	var verifications []gate.VerificationResult
	for _, verifier := range c.reg.Verifiers() {
		v, err := verifier.Verify(ctx, step, c.state)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "verifier %q on step %q", verifier.Name(), step.ID)
		}
		verifications = append(verifications, v)
	}

	thresholds := c.thresholds.Override(step.Gate.Thresholds)
	evaluator := gate.NewCompositeEvaluator(c.gateCfg, thresholds)
	result, err := evaluator.Evaluate(scores, manifest, verifications, c.baseline)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "gate on step %q", step.ID)
	}
	return result, scores, manifest, nil
}

// merge folds one step result into workflow state and applies the
// progression decision. Returns done=true when the workflow should stop
// successfully. Runs only on the coordinator goroutine.
func (c *Coordinator) merge(res stepResult) (bool, error) {
	step := c.plan.Steps[res.stepID]
	log := c.logger.WithStep(res.stepID)

	status := workflow.ExecCompleted
	if res.execErr != nil {
		status = workflow.ExecFailed
	}
	c.state.FinishExecution(res.execIndex, status, res.execErr)

	if res.gate != nil {
		c.state.SetVariable("gate:"+res.stepID, res.gate)
		c.bus.Publish(event.NewGateEvaluatedEvent(
			c.state.WorkflowID, c.state.WorkflowID, res.stepID,
			res.gate.Passed, res.gate.HardFail, res.gate.SoftFail, res.gate.Reasons))
		log.Info("gate evaluated",
			"passed", res.gate.Passed,
			"hard_fail", res.gate.HardFail,
			"soft_fail", res.gate.SoftFail)

		if res.gate.Passed && res.scores != nil {
			c.baseline = res.scores
		}
		if !res.gate.Passed && res.gate.Loopback {
			if err := c.checkRemediationBudget(step, res); err != nil {
				return false, err
			}
		}
	}

	decision := c.prog.Decide(step, res.execErr, res.gate)

	switch decision.Action {
	case progression.ActionContinue:
		loopback := res.gate != nil && !res.gate.Passed && decision.NextStepID != ""
		if loopback {
			// The gated step stays incomplete until its gate passes. A
			// route to another step holds it so the remediation target
			// runs first.
			if decision.NextStepID != res.stepID {
				c.gateHolds[res.stepID] = decision.NextStepID
			}
		} else {
			c.state.MarkCompleted(res.stepID)
			c.releaseGateHolds(res.stepID)
		}
		if res.artifacts != nil {
			c.state.MergeArtifacts(res.stepID, res.artifacts)
		}
		if !loopback {
			c.bus.Publish(event.NewStepCompletedEvent(
				c.state.WorkflowID, c.state.WorkflowID, res.stepID,
				artifactNames(res.artifacts), res.duration))
		}

		if decision.Terminal {
			return true, nil
		}
		if decision.NextStepID != "" {
			// A loopback target may already be complete; unmark it so
			// it re-enters the ready set.
			if c.state.IsCompleted(decision.NextStepID) {
				c.state.UnmarkCompleted(decision.NextStepID)
			}
			c.state.CurrentStep = decision.NextStepID
		} else {
			c.state.CurrentStep = c.plan.Successor(res.stepID)
		}

	case progression.ActionRetry:
		c.nextEligible[res.stepID] = time.Now().Add(decision.Backoff)
		c.publishFailure(step, res, decision)
		log.Warn("step will retry",
			"retry_count", decision.RetryCount,
			"backoff", decision.Backoff.String(),
			"reason", decision.Reason)

	case progression.ActionSkip:
		c.state.MarkSkipped(res.stepID)
		c.releaseGateHolds(res.stepID)
		c.publishFailure(step, res, decision)
		log.Warn("step skipped", "reason", decision.Reason)

	case progression.ActionPause:
		c.Pause(decision.Reason)

	case progression.ActionAbort:
		c.publishFailure(step, res, decision)
		return false, c.abortError(res, decision)
	}

	return false, nil
}

// releaseGateHolds re-opens gated steps whose remediation target just
// reached a terminal state, so their gates are re-evaluated.
func (c *Coordinator) releaseGateHolds(targetID string) {
	for gated, target := range c.gateHolds {
		if target == targetID {
			delete(c.gateHolds, gated)
		}
	}
}

// checkRemediationBudget consults the step's bounded remediation loop
// before allowing another soft-fail loopback. An exhausted or regressing
// loop turns the loopback into a terminal failure.
func (c *Coordinator) checkRemediationBudget(step workflow.Step, res stepResult) error {
	loop, ok := c.loops[step.ID]
	if !ok {
		maxRetries := 0
		if step.Gate != nil {
			maxRetries = step.Gate.MaxRetries
		}
		loop = remediation.NewLoop(maxRetries, true)
		c.loops[step.ID] = loop
	}

	previous := c.manifests[step.ID]
	c.manifests[step.ID] = res.issues

	retry, reason := loop.ShouldRetry(res.issues, previous)
	if !retry {
		return errors.NewGateError(
			fmt.Sprintf("remediation stopped: %s", reason), errors.ErrRetriesExhausted).
			WithStepID(step.ID).WithReasons(res.gate.Reasons)
	}
	loop.RecordAttempt()

	// Publish the prioritized fix plan for the remediation step to
	// consume.
	if res.issues != nil && res.issues.Len() > 0 {
		c.state.SetVariable("fix_plan:"+step.ID, remediation.CreateFixPlan(res.issues))
	}
	c.logger.WithStep(step.ID).Info("remediation loop continues",
		"attempt", loop.RetryCount(),
		"max_retries", loop.MaxRetries(),
		"reason", reason)
	return nil
}

// abortError builds the terminal error for an abort decision.
func (c *Coordinator) abortError(res stepResult, decision progression.Decision) error {
	if res.execErr != nil {
		return res.execErr
	}
	if res.gate != nil && !res.gate.Passed {
		cause := errors.ErrGateSoftFail
		if res.gate.HardFail {
			cause = errors.ErrGateHardFail
		}
		return errors.NewGateError(decision.Reason, cause).
			WithStepID(res.stepID).WithReasons(res.gate.Reasons)
	}
	return errors.NewWorkflowError(decision.Reason, nil).
		WithWorkflowID(c.state.WorkflowID)
}

// publishFailure emits a step.failed event with the remaining budget.
func (c *Coordinator) publishFailure(step workflow.Step, res stepResult, decision progression.Decision) {
	msg := decision.Reason
	if res.execErr != nil {
		msg = res.execErr.Error()
	}
	retriesLeft := c.retryCeiling(step) - decision.RetryCount
	if retriesLeft < 0 {
		retriesLeft = 0
	}
	c.bus.Publish(event.NewStepFailedEvent(
		c.state.WorkflowID, c.state.WorkflowID, res.stepID, msg, retriesLeft))
}

// retryCeiling mirrors the progression manager's per-step retry budget.
func (c *Coordinator) retryCeiling(step workflow.Step) int {
	if step.Retry != nil && step.Retry.MaxRetries > 0 {
		return step.Retry.MaxRetries
	}
	if step.Gate != nil && step.Gate.MaxRetries > 0 {
		return step.Gate.MaxRetries
	}
	return progression.DefaultMaxRetries
}

// complete marks the run successful, checkpoints, and emits the
// terminal event.
func (c *Coordinator) complete() error {
	c.state.Complete()
	if err := c.checkpointState(); err != nil {
		c.logger.Error("final checkpoint failed", "error", err.Error())
	}
	c.bus.Publish(event.NewWorkflowCompletedEvent(
		c.state.WorkflowID, c.state.WorkflowID,
		len(c.state.CompletedSteps), len(c.state.SkippedSteps),
		time.Since(c.state.StartedAt)))
	c.logger.Info("workflow completed",
		"completed", len(c.state.CompletedSteps),
		"skipped", len(c.state.SkippedSteps))
	return nil
}

// fail marks the run failed, checkpoints, emits the terminal event, and
// returns the error for the caller.
func (c *Coordinator) fail(stepID string, err error) error {
	c.state.Fail(err)
	if cpErr := c.checkpointState(); cpErr != nil {
		c.logger.Error("final checkpoint failed", "error", cpErr.Error())
	}
	c.bus.Publish(event.NewWorkflowFailedEvent(
		c.state.WorkflowID, c.state.WorkflowID, stepID, err.Error()))
	c.logger.Error("workflow failed", "step", stepID, "error", err.Error())
	return err
}

// deadlineError maps a context error to the workflow-level sentinel.
func (c *Coordinator) deadlineError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(errors.ErrWorkflowTimeout, "after %s", c.cfg.WorkflowTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return errors.Wrap(errors.ErrCanceled, "workflow")
	}
	return err
}

// checkpointState persists state and progression history when a store
// is configured.
func (c *Coordinator) checkpointState() error {
	if c.store == nil {
		return nil
	}
	if err := c.store.SaveState(c.state); err != nil {
		return errors.Wrap(err, "checkpoint state")
	}
	if err := c.store.SaveHistory(c.prog.History(), c.prog.RetrySnapshot()); err != nil {
		return errors.Wrap(err, "checkpoint history")
	}
	return nil
}

// Pause suspends scheduling after the current batch merges. Safe to
// call from any goroutine.
func (c *Coordinator) Pause(reason string) {
	c.mu.Lock()
	already := c.paused
	c.paused = true
	c.mu.Unlock()

	if !already {
		c.prog.RecordExternal("", progression.ActionPause, reason)
		c.logger.Info("workflow pause requested", "reason", reason)
	}
}

// Resume releases a paused coordinator.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	if c.paused {
		c.paused = false
		close(c.resumeCh)
		c.resumeCh = make(chan struct{})
		c.logger.Info("workflow resumed")
	}
	c.mu.Unlock()
}

// SkipStep requests that a pending step be skipped. Applied before the
// next scheduling round.
func (c *Coordinator) SkipStep(stepID, reason string) {
	c.mu.Lock()
	c.skips[stepID] = reason
	c.mu.Unlock()
}

// waitIfPaused blocks while the coordinator is paused, reflecting the
// pause in workflow state so checkpoints record it.
func (c *Coordinator) waitIfPaused(ctx context.Context) error {
	for {
		c.mu.Lock()
		paused := c.paused
		ch := c.resumeCh
		c.mu.Unlock()

		if !paused {
			if c.state.Status == workflow.StatusPaused {
				c.state.Status = workflow.StatusRunning
				c.state.UpdatedAt = time.Now().UTC()
			}
			return nil
		}

		if c.state.Status != workflow.StatusPaused {
			c.state.Status = workflow.StatusPaused
			c.state.UpdatedAt = time.Now().UTC()
			if err := c.checkpointState(); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// applySkips marks operator-requested skips before selecting a batch.
func (c *Coordinator) applySkips() {
	c.mu.Lock()
	skips := c.skips
	c.skips = make(map[string]string)
	c.mu.Unlock()

	for stepID, reason := range skips {
		if c.state.IsCompleted(stepID) || c.state.IsSkipped(stepID) {
			continue
		}
		c.state.MarkSkipped(stepID)
		c.releaseGateHolds(stepID)
		c.prog.RecordExternal(stepID, progression.ActionSkip, reason)
		c.logger.WithStep(stepID).Info("step skipped by request", "reason", reason)
	}
}

// artifactNames extracts the artifact keys for event payloads.
func artifactNames(artifacts map[string]any) []string {
	if len(artifacts) == 0 {
		return nil
	}
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	return names
}
