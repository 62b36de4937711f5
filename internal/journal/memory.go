package journal

import (
	"sync"
)

// DefaultRetention bounds the in-memory journal when no cap is given.
const DefaultRetention = 4096

// MemoryJournal is an in-memory journal backend.
type MemoryJournal struct {
	entries []Entry
	max     int
	nextSeq int64
	mu      sync.RWMutex
}

// NewMemoryJournal creates an in-memory journal keeping at most max entries.
// A non-positive max uses DefaultRetention.
func NewMemoryJournal(max int) *MemoryJournal {
	if max <= 0 {
		max = DefaultRetention
	}
	return &MemoryJournal{max: max}
}

// Append records an entry, assigning its sequence number.
func (m *MemoryJournal) Append(e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	e.Seq = m.nextSeq
	m.entries = append(m.entries, *e)

	// Drop oldest entries past the retention cap
	if len(m.entries) > m.max {
		overflow := len(m.entries) - m.max
		m.entries = append(m.entries[:0:0], m.entries[overflow:]...)
	}

	return nil
}

// Recent returns up to limit entries, newest first.
func (m *MemoryJournal) Recent(limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Entry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, copyEntry(m.entries[i]))
	}
	return out, nil
}

// copyEntry returns a copy whose slice fields are safe to hand out.
func copyEntry(e Entry) Entry {
	if e.Modules != nil {
		e.Modules = append([]string(nil), e.Modules...)
	}
	return e
}

// Clear removes all entries.
func (m *MemoryJournal) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	return nil
}

// Close closes the journal backend.
func (m *MemoryJournal) Close() error {
	return nil
}

// Count returns the number of retained entries.
func (m *MemoryJournal) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
