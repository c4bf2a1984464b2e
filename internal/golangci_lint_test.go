package internal

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// TestGolangciLintCompliance verifies that all Go source files in the
// project pass golangci-lint checks.
//
// If this test fails, run: golangci-lint run
//
// This test is skipped if golangci-lint is not installed.
func TestGolangciLintCompliance(t *testing.T) {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}
	if testing.Short() {
		t.Skip("skipping lint check in short mode")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	projectRoot := wd
	if filepath.Base(wd) == "internal" {
		projectRoot = filepath.Dir(wd)
	}

	cmd := exec.Command("golangci-lint", "run", "--timeout", "5m", "./...")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Errorf("golangci-lint reported issues:\n%s", output)
	}
}
