package progression

import (
	"fmt"
	"math"
	"sync"
	"time"

	"stepflow/internal/errors"
	"stepflow/internal/gate"
	"stepflow/internal/logging"
	"stepflow/internal/workflow"
)

// Auto-progression defaults.
const (
	// DefaultMaxRetries is the per-step retry ceiling when neither the
	// step nor the configuration says otherwise.
	DefaultMaxRetries = 3

	// DefaultBackoffBase is the exponential backoff base.
	DefaultBackoffBase = 2 * time.Second

	// DefaultMaxBackoff caps the backoff delay between retries.
	DefaultMaxBackoff = 2 * time.Minute
)

// Config tunes the progression manager.
type Config struct {
	// AutoRetryEnabled controls whether failed steps are retried
	// automatically. When false every execution failure escalates
	// straight to skip, degrade, or abort handling.
	AutoRetryEnabled bool

	// MaxRetries is the default per-step retry ceiling. Steps can
	// override it through their retry or gate configuration.
	MaxRetries int

	// BackoffBase is the exponential backoff base between retries.
	BackoffBase time.Duration

	// MaxBackoff caps the computed backoff.
	MaxBackoff time.Duration
}

// DefaultConfig returns progression defaults with auto-retry enabled.
func DefaultConfig() Config {
	return Config{
		AutoRetryEnabled: true,
		MaxRetries:       DefaultMaxRetries,
		BackoffBase:      DefaultBackoffBase,
		MaxBackoff:       DefaultMaxBackoff,
	}
}

// Manager decides how the workflow proceeds after each step completion.
// It owns the per-step retry counters and the append-only history. All
// decisions flow through Decide so the history is a complete record.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	retries map[string]int
	history *History
	logger  *logging.Logger
}

// NewManager creates a progression manager. Non-positive config fields
// fall back to defaults.
func NewManager(cfg Config, logger *logging.Logger) *Manager {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		cfg:     cfg,
		retries: make(map[string]int),
		history: NewHistory(),
		logger:  logger.WithPhase("progression"),
	}
}

// History returns the manager's append-only decision log.
func (m *Manager) History() *History {
	return m.history
}

// RestoreHistory adopts a persisted history so new decisions append to
// the existing audit trail when a run resumes.
func (m *Manager) RestoreHistory(h *History) {
	if h != nil {
		m.history = h
	}
}

// RestoreRetries seeds the per-step retry counters, used when resuming
// a checkpointed run.
func (m *Manager) RestoreRetries(counts map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range counts {
		m.retries[id] = n
	}
}

// Retries returns the recorded retry count for a step.
func (m *Manager) Retries(stepID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries[stepID]
}

// RetrySnapshot returns a copy of all per-step retry counters for
// checkpointing.
func (m *Manager) RetrySnapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.retries))
	for id, n := range m.retries {
		out[id] = n
	}
	return out
}

// Decide resolves the next action after a step completes.
//
// Decision order for a successful execution with a failed gate:
//  1. explicit on-fail route configured: follow it (a terminal route
//     ends the run, an explicit step loops execution back there, "next"
//     continues to the graph successor despite the failure)
//  2. hard failure: abort, never retried
//  3. retry-on-fail with budget remaining: re-execute the step
//  4. otherwise: abort
//
// Decision order for an execution failure:
//  1. auto-retry enabled, error retryable, budget remaining: retry with
//     exponential backoff
//  2. step marked skip-on-fail: skip and continue without its artifacts
//  3. step marked error-recoverable: continue degraded
//  4. otherwise: abort
func (m *Manager) Decide(step workflow.Step, execErr error, gateResult *gate.CompositeResult) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	var decision Decision
	switch {
	case execErr != nil:
		decision = m.decideFailure(step, execErr)
	case gateResult != nil && !gateResult.Passed:
		decision = m.decideGateFailure(step, gateResult)
	default:
		decision = m.decideSuccess(step)
	}

	m.history.Append(HistoryEntry{
		StepID:     step.ID,
		Action:     decision.Action,
		Reason:     decision.Reason,
		RetryCount: decision.RetryCount,
		Gate:       gateResult,
	})
	m.logger.WithStep(step.ID).Info("progression decision",
		"action", string(decision.Action),
		"reason", decision.Reason,
		"retry_count", decision.RetryCount)
	return decision
}

// decideSuccess routes a successful step with a passing (or absent)
// gate through its on-pass destination.
func (m *Manager) decideSuccess(step workflow.Step) Decision {
	delete(m.retries, step.ID)

	decision := Decision{Action: ActionContinue, Reason: "step completed"}
	if step.Gate == nil {
		return decision
	}

	decision.Reason = "gate passed"
	switch step.Gate.OnPass.Kind {
	case workflow.DestExplicitStep:
		decision.NextStepID = step.Gate.OnPass.StepID
	case workflow.DestTerminal:
		decision.Terminal = true
		decision.Reason = "gate passed, routed to end"
	}
	return decision
}

// decideGateFailure handles a successful execution whose gate failed.
func (m *Manager) decideGateFailure(step workflow.Step, result *gate.CompositeResult) Decision {
	reason := "gate failed"
	if len(result.Reasons) > 0 {
		reason = fmt.Sprintf("gate failed: %s", result.Reasons[0])
	}

	if step.Gate != nil && step.Gate.OnFailSet {
		switch step.Gate.OnFail.Kind {
		case workflow.DestNextInGraph:
			return Decision{
				Action:     ActionContinue,
				Reason:     reason + ", failure route continues to next step",
				RetryCount: m.retries[step.ID],
			}
		case workflow.DestExplicitStep:
			return Decision{
				Action:     ActionContinue,
				NextStepID: step.Gate.OnFail.StepID,
				Reason:     fmt.Sprintf("%s, routing to %s", reason, step.Gate.OnFail.StepID),
				RetryCount: m.retries[step.ID],
			}
		case workflow.DestTerminal:
			return Decision{
				Action:   ActionAbort,
				Terminal: true,
				Reason:   reason + ", failure route is terminal",
			}
		}
	}

	if result.HardFail {
		return Decision{Action: ActionAbort, Reason: reason + " (hard)"}
	}

	if step.Gate != nil && step.Gate.RetryOnFail {
		ceiling := step.Gate.MaxRetries
		if ceiling <= 0 {
			ceiling = m.cfg.MaxRetries
		}
		if m.retries[step.ID] < ceiling {
			m.retries[step.ID]++
			count := m.retries[step.ID]
			return Decision{
				Action:     ActionRetry,
				Reason:     fmt.Sprintf("%s, retrying (%d/%d)", reason, count, ceiling),
				RetryCount: count,
				Backoff:    m.backoff(count),
			}
		}
		return Decision{
			Action:     ActionAbort,
			Reason:     fmt.Sprintf("%s, retries exhausted (%d/%d)", reason, m.retries[step.ID], ceiling),
			RetryCount: m.retries[step.ID],
		}
	}

	return Decision{Action: ActionAbort, Reason: reason + ", no failure route configured"}
}

// decideFailure handles an execution error.
func (m *Manager) decideFailure(step workflow.Step, execErr error) Decision {
	reason := fmt.Sprintf("step failed: %v", execErr)

	ceiling := m.cfg.MaxRetries
	if step.Retry != nil && step.Retry.MaxRetries > 0 {
		ceiling = step.Retry.MaxRetries
	}

	if m.cfg.AutoRetryEnabled && errors.IsRetryable(execErr) && m.retries[step.ID] < ceiling {
		m.retries[step.ID]++
		count := m.retries[step.ID]
		return Decision{
			Action:     ActionRetry,
			Reason:     fmt.Sprintf("%s, retrying (%d/%d)", reason, count, ceiling),
			RetryCount: count,
			Backoff:    m.backoff(count),
		}
	}

	if step.Retry != nil && step.Retry.SkipOnFail {
		return Decision{
			Action:     ActionSkip,
			Reason:     reason + ", step is skippable",
			RetryCount: m.retries[step.ID],
		}
	}
	if step.Retry != nil && step.Retry.ErrorRecoverable {
		return Decision{
			Action:     ActionContinue,
			Reason:     reason + ", continuing degraded",
			RetryCount: m.retries[step.ID],
		}
	}

	return Decision{
		Action:     ActionAbort,
		Reason:     reason,
		RetryCount: m.retries[step.ID],
	}
}

// backoff computes the delay before the nth retry: base^n capped at the
// configured maximum.
func (m *Manager) backoff(count int) time.Duration {
	base := m.cfg.BackoffBase.Seconds()
	delay := time.Duration(math.Pow(base, float64(count)) * float64(time.Second))
	if delay > m.cfg.MaxBackoff || delay <= 0 {
		return m.cfg.MaxBackoff
	}
	return delay
}

// RecordExternal appends a decision made outside the state machine,
// such as an operator pause, skip, or resume.
func (m *Manager) RecordExternal(stepID string, action Action, reason string) {
	m.mu.Lock()
	count := m.retries[stepID]
	m.mu.Unlock()

	m.history.Append(HistoryEntry{
		StepID:     stepID,
		Action:     action,
		Reason:     reason,
		RetryCount: count,
	})
	m.logger.WithStep(stepID).Info("external progression event",
		"action", string(action), "reason", reason)
}
