package remediation

import "sort"

// FixPlan is a prioritized remediation work order derived from an issue
// manifest. Issues are grouped by owning step so each component receives
// only its relevant fixes.
type FixPlan struct {
	// Issues holds every distinct issue, critical first, stable by
	// category within a severity.
	Issues []Issue `json:"issues"`

	// ByOwner maps each owning step ID to its share of the plan, in the
	// same priority order. Issues without an owner land under "".
	ByOwner map[string][]Issue `json:"by_owner"`

	// Owners lists the owner keys in deterministic (sorted) order.
	Owners []string `json:"owners"`
}

// CreateFixPlan builds a FixPlan from a manifest. The plan is
// deterministic for a given manifest: same issues in, same plan out.
func CreateFixPlan(m *Manifest) *FixPlan {
	prioritized := m.Prioritized()

	byOwner := make(map[string][]Issue)
	for _, issue := range prioritized {
		byOwner[issue.OwnerStep] = append(byOwner[issue.OwnerStep], issue)
	}

	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	return &FixPlan{
		Issues:  prioritized,
		ByOwner: byOwner,
		Owners:  owners,
	}
}

// For returns the fixes owned by the given step, highest priority first.
func (p *FixPlan) For(ownerStep string) []Issue {
	return p.ByOwner[ownerStep]
}

// IsEmpty reports whether the plan contains no work.
func (p *FixPlan) IsEmpty() bool {
	return len(p.Issues) == 0
}
