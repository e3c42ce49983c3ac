// Package dedup suppresses repeated values in event streams.
package dedup

import (
	"sync"

	"github.com/banshee-data/gaze.report/internal/gaze"
)

// Last remembers the most recent value it was shown. The zero value is
// ready to use and reports the first value as changed. Last is not safe
// for concurrent use.
type Last[K comparable] struct {
	value K
	seen  bool
}

// Changed records k and reports whether it differs from the previous value.
func (l *Last[K]) Changed(k K) bool {
	if l.seen && l.value == k {
		return false
	}
	l.value, l.seen = k, true
	return true
}

func (l *Last[K]) Reset() {
	var zero K
	l.value, l.seen = zero, false
}

// SelectionKey identifies a selection independent of when it happened.
type SelectionKey struct {
	Path  string
	Start string
	End   string
	Text  string
}

func KeyOf(s gaze.Selection) SelectionKey {
	return SelectionKey{Path: s.Path, Start: s.Start, End: s.End, Text: s.Text}
}

// SelectionFilter drops a selection event identical to the one before it.
// Editors fire selectionChanged repeatedly while a drag settles.
type SelectionFilter struct {
	mu   sync.Mutex
	last Last[SelectionKey]
}

// Admit reports whether s should be emitted.
func (f *SelectionFilter) Admit(s gaze.Selection) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last.Changed(KeyOf(s))
}

func (f *SelectionFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last.Reset()
}
