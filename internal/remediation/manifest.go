package remediation

import "sort"

// Manifest is a deduplicated, prioritized issue collection. The first
// occurrence of a duplicate key wins; later duplicates are dropped.
type Manifest struct {
	issues []Issue
	seen   map[string]bool
}

// NewManifest creates a Manifest from the given issues, deduplicating
// as it goes.
func NewManifest(issues ...Issue) *Manifest {
	m := &Manifest{seen: make(map[string]bool)}
	m.Add(issues...)
	return m
}

// Add appends issues that are not already present. Returns the number
// of issues actually added.
func (m *Manifest) Add(issues ...Issue) int {
	added := 0
	for _, issue := range issues {
		key := issue.dedupeKey()
		if m.seen[key] {
			continue
		}
		m.seen[key] = true
		m.issues = append(m.issues, issue)
		added++
	}
	return added
}

// Len returns the number of distinct issues.
func (m *Manifest) Len() int {
	return len(m.issues)
}

// Issues returns the deduplicated issues in insertion order.
func (m *Manifest) Issues() []Issue {
	out := make([]Issue, len(m.issues))
	copy(out, m.issues)
	return out
}

// Prioritized returns the issues ordered critical→high→medium→low, with
// a stable secondary order by category so repeated runs produce
// identical plans.
func (m *Manifest) Prioritized() []Issue {
	out := m.Issues()
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Severity.Compare(out[j].Severity); c != 0 {
			return c < 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Count returns how many issues carry the given severity.
func (m *Manifest) Count(severity Severity) int {
	n := 0
	for _, issue := range m.issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// CountCritical returns the number of critical issues.
func (m *Manifest) CountCritical() int { return m.Count(SeverityCritical) }

// CountHigh returns the number of high issues.
func (m *Manifest) CountHigh() int { return m.Count(SeverityHigh) }
