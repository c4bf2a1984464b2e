package checkpoint

import (
	"path/filepath"
	"testing"

	"stepflow/internal/plan"
	"stepflow/internal/progression"
	"stepflow/internal/workflow"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "run"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestNewStoreRejectsEmptyDir(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Errorf("NewStore(\"\") should fail")
	}
}

func TestStateRoundTrip(t *testing.T) {
	store := testStore(t)

	state := workflow.NewState("wf-1", "design")
	state.MarkCompleted("design")
	state.MergeArtifacts("design", map[string]any{"doc": "v1"})
	state.SetVariable("reviewer", "alice")

	if err := store.SaveState(state); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	loaded, err := store.LoadState()
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if loaded.WorkflowID != "wf-1" {
		t.Errorf("WorkflowID = %q", loaded.WorkflowID)
	}
	if !loaded.IsCompleted("design") {
		t.Errorf("completion set lost in round trip")
	}
	if !loaded.HasArtifact("doc") {
		t.Errorf("artifacts lost in round trip")
	}
	if loaded.Artifacts["doc"].CreatedBy != "design" {
		t.Errorf("artifact provenance lost: %+v", loaded.Artifacts["doc"])
	}
	if loaded.Variables["reviewer"] != "alice" {
		t.Errorf("variables lost in round trip")
	}
}

func TestPlanRoundTrip(t *testing.T) {
	store := testStore(t)

	p, err := plan.Build([]workflow.Step{
		{ID: "a", Agent: "a", Action: "x", Creates: []string{"out"}},
		{ID: "b", Agent: "a", Action: "x", Requires: []string{"out"}},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := store.SavePlan(p); err != nil {
		t.Fatalf("SavePlan() error = %v", err)
	}

	loaded, err := store.LoadPlan()
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}
	if len(loaded.Order) != 2 || loaded.Order[0] != "a" || loaded.Order[1] != "b" {
		t.Errorf("Order = %v, want [a b]", loaded.Order)
	}
	if _, ok := loaded.Steps["b"]; !ok {
		t.Errorf("step map lost in round trip")
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	store := testStore(t)

	history := progression.NewHistory()
	history.Append(progression.HistoryEntry{
		StepID: "build",
		Action: progression.ActionRetry,
		Reason: "transient failure",
	})
	retries := map[string]int{"build": 1}

	if err := store.SaveHistory(history, retries); err != nil {
		t.Fatalf("SaveHistory() error = %v", err)
	}

	loaded, loadedRetries, err := store.LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("history Len = %d, want 1", loaded.Len())
	}
	entry := loaded.Entries()[0]
	if entry.StepID != "build" || entry.Action != progression.ActionRetry {
		t.Errorf("entry = %+v", entry)
	}
	if loadedRetries["build"] != 1 {
		t.Errorf("retries = %v, want build:1", loadedRetries)
	}
}

func TestHasState(t *testing.T) {
	store := testStore(t)

	if store.HasState() {
		t.Errorf("fresh run directory should have no state")
	}
	if err := store.SaveState(workflow.NewState("wf-1", "a")); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
	if !store.HasState() {
		t.Errorf("HasState() should report the saved checkpoint")
	}
}

func TestSaveStateOverwrites(t *testing.T) {
	store := testStore(t)

	state := workflow.NewState("wf-1", "a")
	if err := store.SaveState(state); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
	state.MarkCompleted("a")
	if err := store.SaveState(state); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	loaded, err := store.LoadState()
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if !loaded.IsCompleted("a") {
		t.Errorf("latest checkpoint should win")
	}
}

func TestLoadStateMissing(t *testing.T) {
	store := testStore(t)
	if _, err := store.LoadState(); err == nil {
		t.Errorf("loading a missing checkpoint should fail")
	}
}

func TestAcquireRunLockExcludesSecondRun(t *testing.T) {
	store := testStore(t)

	release, err := store.AcquireRunLock()
	if err != nil {
		t.Fatalf("AcquireRunLock() error = %v", err)
	}
	if _, err := store.AcquireRunLock(); err == nil {
		t.Errorf("second acquire should fail while the run lock is held")
	}

	release()
	release, err = store.AcquireRunLock()
	if err != nil {
		t.Fatalf("AcquireRunLock() after release error = %v", err)
	}
	release()
}

func TestRunLockDoesNotBlockCheckpoints(t *testing.T) {
	store := testStore(t)

	release, err := store.AcquireRunLock()
	if err != nil {
		t.Fatalf("AcquireRunLock() error = %v", err)
	}
	defer release()

	if err := store.SaveState(workflow.NewState("wf-1", "a")); err != nil {
		t.Errorf("SaveState() under run lock error = %v", err)
	}
	if _, err := store.LoadState(); err != nil {
		t.Errorf("LoadState() under run lock error = %v", err)
	}
}

func TestFileLockTryLock(t *testing.T) {
	dir := t.TempDir()

	first := NewFileLock(dir)
	ok, err := first.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v, want acquired", ok, err)
	}
	defer func() { _ = first.Unlock() }()

	second := NewFileLock(dir)
	ok, err = second.TryLock()
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	if ok {
		t.Errorf("second TryLock should fail while the lock is held")
	}
}
