// Package checkpoint persists workflow run state to disk so that a
// crashed or interrupted run can resume from its last consistent point.
//
// Every write is atomic: data goes to a temporary file first and is
// renamed into place, so a reader never observes a torn checkpoint. A
// flock(2) file lock guards each operation against concurrent stepflow
// processes sharing a run directory.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"stepflow/internal/plan"
	"stepflow/internal/progression"
	"stepflow/internal/workflow"
)

// Checkpoint file names inside a run directory.
const (
	stateFileName   = "state.json"
	planFileName    = "plan.json"
	historyFileName = "history.json"

	// runLockFileName is distinct from the per-operation checkpoint lock
	// so holding the run lock does not block checkpoint writes.
	runLockFileName = "run.lock"
)

// persistedHistory wraps the progression log with the retry counters
// needed to resume the state machine where it left off.
type persistedHistory struct {
	Entries []progression.HistoryEntry `json:"entries"`
	Retries map[string]int             `json:"retries,omitempty"`
}

// Store reads and writes checkpoints for one run directory.
type Store struct {
	dir string
}

// NewStore creates a checkpoint store rooted at dir, creating the
// directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the run directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// AcquireRunLock claims the run directory for this process, so two
// concurrent runs cannot interleave checkpoints in the same directory.
// It fails without blocking when another process holds the lock. The
// returned release function must be called when the run finishes.
func (s *Store) AcquireRunLock() (release func(), err error) {
	fl := &FileLock{path: filepath.Join(s.dir, runLockFileName)}
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("run directory %s is in use by another process", s.dir)
	}
	return func() { _ = fl.Unlock() }, nil
}

// SaveState writes the workflow state checkpoint.
func (s *Store) SaveState(state *workflow.State) error {
	return s.writeLocked(stateFileName, state)
}

// LoadState restores the workflow state from the last checkpoint.
func (s *Store) LoadState() (*workflow.State, error) {
	var state workflow.State
	if err := s.readLocked(stateFileName, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SavePlan writes the execution plan snapshot. The plan is immutable
// for the life of a run, so this is written once at workflow start.
func (s *Store) SavePlan(p *plan.ExecutionPlan) error {
	return s.writeLocked(planFileName, p)
}

// LoadPlan restores the execution plan snapshot.
func (s *Store) LoadPlan() (*plan.ExecutionPlan, error) {
	var p plan.ExecutionPlan
	if err := s.readLocked(planFileName, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveHistory writes the progression history and retry counters.
func (s *Store) SaveHistory(history *progression.History, retries map[string]int) error {
	return s.writeLocked(historyFileName, persistedHistory{
		Entries: history.Entries(),
		Retries: retries,
	})
}

// LoadHistory restores the progression history and retry counters.
func (s *Store) LoadHistory() (*progression.History, map[string]int, error) {
	var persisted persistedHistory
	if err := s.readLocked(historyFileName, &persisted); err != nil {
		return nil, nil, err
	}
	if persisted.Retries == nil {
		persisted.Retries = make(map[string]int)
	}
	return progression.RestoreHistory(persisted.Entries), persisted.Retries, nil
}

// HasState reports whether a state checkpoint exists, i.e. whether the
// run directory holds a resumable run.
func (s *Store) HasState() bool {
	_, err := os.Stat(filepath.Join(s.dir, stateFileName))
	return err == nil
}

// writeLocked marshals v and atomically replaces the named checkpoint
// file under the run directory lock.
func (s *Store) writeLocked(name string, v any) error {
	fl := NewFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// readLocked reads and unmarshals the named checkpoint file under the
// run directory lock.
func (s *Store) readLocked(name string, v any) error {
	fl := NewFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}
