// Package remediation turns quality issues into prioritized fix plans and
// bounds corrective retries so a failing gate can never loop forever.
//
// The package provides three pieces:
//   - [Issue] and [Manifest]: a deduplicated, prioritized issue collection
//   - [CreateFixPlan]: grouping of issues into per-owner fix batches
//   - [Loop]: the bounded should-retry decision with a regression guard
package remediation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Severity classifies how serious an issue is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank orders severities for prioritization.
// More severe = lower rank (critical=0 ... low=3).
func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether the severity is a known level.
func (s Severity) Valid() bool {
	return severityRank(s) < 4
}

// Compare orders two severities. Returns -1 if s is more severe than
// other, 0 if equal, 1 if less severe.
func (s Severity) Compare(other Severity) int {
	a, b := severityRank(s), severityRank(other)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Issue is a single quality finding reported by a scorer or reviewer.
type Issue struct {
	ID           string   `json:"id,omitempty"`
	Severity     Severity `json:"severity"`
	Category     string   `json:"category"`
	FilePath     string   `json:"file_path,omitempty"`
	LineNumber   int      `json:"line_number,omitempty"`
	Evidence     string   `json:"evidence,omitempty"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`

	// OwnerStep names the step responsible for fixing this issue.
	OwnerStep string `json:"owner_step,omitempty"`
}

// dedupeKey returns the identity used for manifest deduplication.
// Key precedence: explicit ID, then location (file, line, category),
// then a content hash over the issue's descriptive fields.
func (i Issue) dedupeKey() string {
	if i.ID != "" {
		return "id:" + i.ID
	}
	if i.FilePath != "" {
		return fmt.Sprintf("loc:%s:%d:%s", i.FilePath, i.LineNumber, i.Category)
	}
	sum := sha256.Sum256([]byte(string(i.Severity) + "|" + i.Category + "|" + i.Evidence))
	return "hash:" + hex.EncodeToString(sum[:])
}
