package remediation

import (
	"testing"
)

func TestManifestDeduplication(t *testing.T) {
	tests := []struct {
		name   string
		issues []Issue
		want   int
	}{
		{
			name: "duplicate IDs collapse",
			issues: []Issue{
				{ID: "x", Severity: SeverityHigh, Category: "sec"},
				{ID: "x", Severity: SeverityLow, Category: "style"},
			},
			want: 1,
		},
		{
			name: "same location and category collapse",
			issues: []Issue{
				{Severity: SeverityHigh, Category: "sec", FilePath: "a.go", LineNumber: 10},
				{Severity: SeverityHigh, Category: "sec", FilePath: "a.go", LineNumber: 10},
			},
			want: 1,
		},
		{
			name: "same location different category distinct",
			issues: []Issue{
				{Severity: SeverityHigh, Category: "sec", FilePath: "a.go", LineNumber: 10},
				{Severity: SeverityHigh, Category: "perf", FilePath: "a.go", LineNumber: 10},
			},
			want: 2,
		},
		{
			name: "content hash fallback collapses identical text",
			issues: []Issue{
				{Severity: SeverityMedium, Category: "style", Evidence: "long function"},
				{Severity: SeverityMedium, Category: "style", Evidence: "long function"},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManifest(tt.issues...)
			if m.Len() != tt.want {
				t.Errorf("Len() = %d, want %d", m.Len(), tt.want)
			}
		})
	}
}

func TestManifestFirstOccurrenceWins(t *testing.T) {
	m := NewManifest(
		Issue{ID: "x", Severity: SeverityCritical, Category: "sec"},
		Issue{ID: "x", Severity: SeverityLow, Category: "style"},
	)
	issues := m.Issues()
	if len(issues) != 1 || issues[0].Severity != SeverityCritical {
		t.Errorf("first occurrence should win, got %+v", issues)
	}
}

func TestManifestPrioritizedOrder(t *testing.T) {
	m := NewManifest(
		Issue{ID: "1", Severity: SeverityLow, Category: "style"},
		Issue{ID: "2", Severity: SeverityCritical, Category: "sec"},
		Issue{ID: "3", Severity: SeverityMedium, Category: "perf"},
		Issue{ID: "4", Severity: SeverityHigh, Category: "sec"},
		Issue{ID: "5", Severity: SeverityHigh, Category: "arch"},
	)

	got := m.Prioritized()
	wantOrder := []string{"2", "5", "4", "3", "1"} // severity, then category
	for i, issue := range got {
		if issue.ID != wantOrder[i] {
			t.Fatalf("position %d = %s, want %s (full: %+v)", i, issue.ID, wantOrder[i], got)
		}
	}
}

func TestManifestCounts(t *testing.T) {
	m := NewManifest(
		Issue{ID: "1", Severity: SeverityCritical, Category: "sec"},
		Issue{ID: "2", Severity: SeverityCritical, Category: "sec"},
		Issue{ID: "3", Severity: SeverityHigh, Category: "perf"},
		Issue{ID: "4", Severity: SeverityLow, Category: "style"},
	)

	if got := m.CountCritical(); got != 2 {
		t.Errorf("CountCritical() = %d, want 2", got)
	}
	if got := m.CountHigh(); got != 1 {
		t.Errorf("CountHigh() = %d, want 1", got)
	}
	if got := m.Count(SeverityMedium); got != 0 {
		t.Errorf("Count(medium) = %d, want 0", got)
	}
}

func TestCreateFixPlanGroupsByOwner(t *testing.T) {
	m := NewManifest(
		Issue{ID: "1", Severity: SeverityLow, Category: "style", OwnerStep: "implement"},
		Issue{ID: "2", Severity: SeverityCritical, Category: "sec", OwnerStep: "review"},
		Issue{ID: "3", Severity: SeverityHigh, Category: "perf", OwnerStep: "implement"},
		Issue{ID: "4", Severity: SeverityMedium, Category: "docs"},
	)

	plan := CreateFixPlan(m)
	if plan.IsEmpty() {
		t.Fatalf("plan should not be empty")
	}

	// Issues arrive prioritized: critical first.
	if plan.Issues[0].ID != "2" {
		t.Errorf("first issue = %s, want the critical one", plan.Issues[0].ID)
	}

	impl := plan.For("implement")
	if len(impl) != 2 {
		t.Fatalf("For(implement) = %d issues, want 2", len(impl))
	}
	// Within an owner the severity order holds.
	if impl[0].ID != "3" || impl[1].ID != "1" {
		t.Errorf("owner batch out of priority order: %+v", impl)
	}

	// Owners are sorted, with the unowned batch keyed by empty string.
	wantOwners := []string{"", "implement", "review"}
	if len(plan.Owners) != len(wantOwners) {
		t.Fatalf("Owners = %v, want %v", plan.Owners, wantOwners)
	}
	for i, owner := range wantOwners {
		if plan.Owners[i] != owner {
			t.Errorf("Owners[%d] = %q, want %q", i, plan.Owners[i], owner)
		}
	}
}

func TestCreateFixPlanEmptyManifest(t *testing.T) {
	plan := CreateFixPlan(NewManifest())
	if !plan.IsEmpty() {
		t.Errorf("empty manifest should produce an empty plan")
	}
	if len(plan.For("anyone")) != 0 {
		t.Errorf("For() on empty plan should return nothing")
	}
}
