// Package registry holds the pluggable collaborators a workflow run
// needs: executors that run steps, scorers that grade their output, and
// verifiers that run hard checks. The registry is constructed at startup
// and injected through context rather than living in a package-level
// singleton, so tests and embedders can wire their own implementations.
package registry

import (
	"context"
	"sort"
	"sync"

	"stepflow/internal/errors"
	"stepflow/internal/gate"
	"stepflow/internal/remediation"
	"stepflow/internal/workflow"
)

// Executor runs a single step and returns the artifacts it produced,
// keyed by artifact name.
type Executor interface {
	Execute(ctx context.Context, step workflow.Step, state *workflow.State) (map[string]any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, step workflow.Step, state *workflow.State) (map[string]any, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, step workflow.Step, state *workflow.State) (map[string]any, error) {
	return f(ctx, step, state)
}

// Scorer grades a completed step for gate evaluation: quality scores
// keyed by metric name, plus any issues found. Either return may be nil
// when the scorer has nothing to say about it.
type Scorer interface {
	Score(ctx context.Context, step workflow.Step, state *workflow.State) (map[string]float64, *remediation.Manifest, error)
}

// Verifier runs one hard check (linter, type checker, security scan)
// against a completed step. A failed verification hard-fails the gate.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, step workflow.Step, state *workflow.State) (gate.VerificationResult, error)
}

// Registry maps agent names to executors and holds the scorers and
// verifiers consulted at gate time. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	fallback  Executor
	scorers   map[string]Scorer
	verifiers map[string]Verifier
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
		scorers:   make(map[string]Scorer),
		verifiers: make(map[string]Verifier),
	}
}

// RegisterExecutor binds an executor to an agent name. Registering the
// same agent twice replaces the earlier executor.
func (r *Registry) RegisterExecutor(agent string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[agent] = e
}

// SetFallbackExecutor sets the executor used for agents with no
// explicit registration.
func (r *Registry) SetFallbackExecutor(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = e
}

// Executor resolves the executor for an agent name, falling back to the
// default executor when one is set.
func (r *Registry) Executor(agent string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.executors[agent]; ok {
		return e, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, errors.NewNotFoundError("executor", agent)
}

// RegisterScorer adds a named scorer.
func (r *Registry) RegisterScorer(name string, s Scorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scorers[name] = s
}

// Scorers returns all registered scorers in name order.
func (r *Registry) Scorers() []Scorer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scorers))
	for name := range r.scorers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Scorer, 0, len(names))
	for _, name := range names {
		out = append(out, r.scorers[name])
	}
	return out
}

// RegisterVerifier adds a verifier, keyed by its Name.
func (r *Registry) RegisterVerifier(v Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[v.Name()] = v
}

// Verifiers returns all registered verifiers in name order.
func (r *Registry) Verifiers() []Verifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.verifiers))
	for name := range r.verifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Verifier, 0, len(names))
	for _, name := range names {
		out = append(out, r.verifiers[name])
	}
	return out
}

type contextKey struct{}

// NewContext returns a context carrying the registry.
func NewContext(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// FromContext extracts the registry from a context. Returns an empty
// registry when none was injected, so callers never nil-check.
func FromContext(ctx context.Context) *Registry {
	if r, ok := ctx.Value(contextKey{}).(*Registry); ok {
		return r
	}
	return New()
}
