package progression

import (
	"sync"
	"time"

	"stepflow/internal/gate"
)

// HistoryEntry is one recorded progression decision. Entries are never
// mutated after append.
type HistoryEntry struct {
	StepID     string                `json:"step_id"`
	Timestamp  time.Time             `json:"timestamp"`
	Action     Action                `json:"action"`
	Reason     string                `json:"reason"`
	RetryCount int                   `json:"retry_count"`
	Gate       *gate.CompositeResult `json:"gate,omitempty"`
}

// History is the append-only progression log. Appends are serialized
// through the scheduler's coordinator, but the log itself is also safe
// for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// RestoreHistory rebuilds a history from persisted entries.
func RestoreHistory(entries []HistoryEntry) *History {
	h := &History{entries: make([]HistoryEntry, len(entries))}
	copy(h.entries, entries)
	return h
}

// Append records an entry. The entry's timestamp is set if zero.
func (h *History) Append(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	h.entries = append(h.entries, entry)
}

// Entries returns a copy of all entries in append order.
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// ForStep returns the entries recorded for one step, oldest first.
func (h *History) ForStep(stepID string) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []HistoryEntry
	for _, entry := range h.entries {
		if entry.StepID == stepID {
			out = append(out, entry)
		}
	}
	return out
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
