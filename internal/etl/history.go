package etl

import (
	"sync"

	"github.com/draftscope/prospect-etl/internal/model"
)

// History is a bounded, newest-first buffer of completed execution
// records. The monitoring server reads it without touching the database.
type History struct {
	mu      sync.Mutex
	cap     int
	records []model.ExecutionRecord
}

// NewHistory creates a history holding at most capacity records.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 50
	}
	return &History{cap: capacity}
}

// Add prepends a record, evicting the oldest past capacity.
func (h *History) Add(rec model.ExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append([]model.ExecutionRecord{rec}, h.records...)
	if len(h.records) > h.cap {
		h.records = h.records[:h.cap]
	}
}

// All returns a snapshot, newest first.
func (h *History) All() []model.ExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.ExecutionRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Latest returns the most recent record, or nil when empty.
func (h *History) Latest() *model.ExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return nil
	}
	rec := h.records[0]
	return &rec
}

// Len reports the number of buffered records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
