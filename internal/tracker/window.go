package tracker

import (
	"iter"
	"time"
)

// Entry is one piece of short-lived matching evidence: a walker identity was
// seen at a camera at a point in time, with or without a dog.
type Entry struct {
	WalkerID  uint
	Camera    string
	Timestamp time.Time
	HasDog    bool
}

// EvidenceWindow is a time-pruned log of recent detections kept only to
// support near-term cross-camera matching. It is owned by a single Tracker,
// is not safe for concurrent use, and is lost on restart; durable history
// lives in the detection records.
type EvidenceWindow struct {
	entries []Entry
}

// NewEvidenceWindow returns an empty evidence window.
func NewEvidenceWindow() *EvidenceWindow {
	return &EvidenceWindow{}
}

// Record appends an entry. Pruning is always a separate, explicit step.
func (w *EvidenceWindow) Record(entry Entry) {
	w.entries = append(w.entries, entry)
}

// Prune removes every entry older than now minus window. It must be called
// after every Record so the window stays bounded by the event rate over the
// window duration.
func (w *EvidenceWindow) Prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := w.entries[:0]
	for _, entry := range w.entries {
		if !entry.Timestamp.Before(cutoff) {
			kept = append(kept, entry)
		}
	}
	w.entries = kept
}

// Recent iterates over the retained entries, most recent first. Ranging the
// sequence again after a mutation reflects the window's current contents.
func (w *EvidenceWindow) Recent() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := len(w.entries) - 1; i >= 0; i-- {
			if !yield(w.entries[i]) {
				return
			}
		}
	}
}

// Len reports the number of retained entries.
func (w *EvidenceWindow) Len() int {
	return len(w.entries)
}
