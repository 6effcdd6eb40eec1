package patterns

import "github.com/Alias1177/CardPredictor/models"

// HistoryWindow keeps the most recent outcomes of one channel, oldest first.
// On overflow the oldest entries are evicted.
type HistoryWindow struct {
	items    []models.Outcome
	capacity int
}

// NewHistoryWindow creates an empty window holding at most capacity outcomes
func NewHistoryWindow(capacity int) *HistoryWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &HistoryWindow{
		items:    make([]models.Outcome, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an outcome, evicting the oldest one when full
func (w *HistoryWindow) Push(o models.Outcome) {
	if len(w.items) == w.capacity {
		copy(w.items, w.items[1:])
		w.items = w.items[:len(w.items)-1]
	}
	w.items = append(w.items, o)
}

// Len returns the number of outcomes held
func (w *HistoryWindow) Len() int { return len(w.items) }

// Capacity returns the maximum number of outcomes held
func (w *HistoryWindow) Capacity() int { return w.capacity }

// Newest returns the i-th most recent outcome, 0 being the last pushed
func (w *HistoryWindow) Newest(i int) (models.Outcome, bool) {
	if i < 0 || i >= len(w.items) {
		return models.Outcome{}, false
	}
	return w.items[len(w.items)-1-i], true
}

// Resize changes the capacity, keeping the newest outcomes
func (w *HistoryWindow) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == w.capacity {
		return
	}
	keep := w.items
	if len(keep) > capacity {
		keep = keep[len(keep)-capacity:]
	}
	items := make([]models.Outcome, len(keep), capacity)
	copy(items, keep)
	w.items = items
	w.capacity = capacity
}

// Clear drops every outcome
func (w *HistoryWindow) Clear() {
	w.items = w.items[:0]
}

// Snapshot returns a copy of the outcomes, oldest first
func (w *HistoryWindow) Snapshot() []models.Outcome {
	out := make([]models.Outcome, len(w.items))
	copy(out, w.items)
	return out
}
