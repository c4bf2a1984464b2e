package remediation

import (
	"strings"
	"testing"
)

func manifestWith(critical, high int) *Manifest {
	m := NewManifest()
	for i := 0; i < critical; i++ {
		m.Add(Issue{ID: "crit-" + string(rune('a'+i)), Severity: SeverityCritical, Category: "sec"})
	}
	for i := 0; i < high; i++ {
		m.Add(Issue{ID: "high-" + string(rune('a'+i)), Severity: SeverityHigh, Category: "perf"})
	}
	return m
}

func TestLoopRetriesWhileCriticalsRemain(t *testing.T) {
	loop := NewLoop(3, false)

	retry, reason := loop.ShouldRetry(manifestWith(2, 0), nil)
	if !retry {
		t.Fatalf("criticals remaining should retry, got: %s", reason)
	}
}

func TestLoopRetriesOnHighAboveThreshold(t *testing.T) {
	loop := NewLoop(3, false)

	retry, _ := loop.ShouldRetry(manifestWith(0, 6), nil)
	if !retry {
		t.Fatalf("6 high issues should retry")
	}

	retry, _ = loop.ShouldRetry(manifestWith(0, 5), nil)
	if retry {
		t.Fatalf("5 high issues are at the threshold, should stop")
	}
}

func TestLoopNeverExceedsBudget(t *testing.T) {
	loop := NewLoop(3, false)
	current := manifestWith(1, 0) // always a reason to retry

	attempts := 0
	for {
		retry, reason := loop.ShouldRetry(current, nil)
		if !retry {
			if !strings.Contains(reason, "budget") {
				t.Fatalf("stop reason = %q, want budget exhaustion", reason)
			}
			break
		}
		loop.RecordAttempt()
		attempts++
		if attempts > 10 {
			t.Fatalf("loop did not terminate within budget")
		}
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestLoopBudgetDecisionIsMonotone(t *testing.T) {
	// Once the budget is spent, no manifest may flip the decision back.
	loop := NewLoop(2, false)
	loop.RecordAttempt()
	loop.RecordAttempt()

	for name, m := range map[string]*Manifest{
		"criticals": manifestWith(5, 0),
		"highs":     manifestWith(0, 20),
		"clean":     manifestWith(0, 0),
		"nil":       nil,
	} {
		if retry, _ := loop.ShouldRetry(m, nil); retry {
			t.Errorf("%s: exhausted budget must never retry", name)
		}
	}
}

func TestLoopRegressionGuard(t *testing.T) {
	tests := []struct {
		name      string
		current   *Manifest
		previous  *Manifest
		wantRetry bool
	}{
		{
			name:      "critical count rose",
			current:   manifestWith(2, 0),
			previous:  manifestWith(1, 0),
			wantRetry: false,
		},
		{
			name:      "high count rose past tolerance",
			current:   manifestWith(1, 7),
			previous:  manifestWith(1, 4),
			wantRetry: false,
		},
		{
			name:      "high count within tolerance band",
			current:   manifestWith(1, 6),
			previous:  manifestWith(1, 4),
			wantRetry: true,
		},
		{
			name:      "improvement continues",
			current:   manifestWith(1, 2),
			previous:  manifestWith(2, 6),
			wantRetry: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop := NewLoop(5, true)
			retry, reason := loop.ShouldRetry(tt.current, tt.previous)
			if retry != tt.wantRetry {
				t.Errorf("ShouldRetry = %v, want %v (reason: %s)", retry, tt.wantRetry, reason)
			}
		})
	}
}

func TestLoopRegressionGuardDisabled(t *testing.T) {
	loop := NewLoop(5, false)

	// Worsening trend, but the guard is off and criticals remain.
	retry, _ := loop.ShouldRetry(manifestWith(3, 0), manifestWith(1, 0))
	if !retry {
		t.Errorf("guard disabled: should retry while criticals remain")
	}
}

func TestLoopDefaultsOnNonPositiveBudget(t *testing.T) {
	loop := NewLoop(0, false)
	if loop.MaxRetries() != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", loop.MaxRetries(), DefaultMaxRetries)
	}
}
