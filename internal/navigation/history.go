package navigation

import "net/url"

// State is what a history record carries for pop restoration
type State struct {
	Content string
	ScrollY int
}

// Record is one history entry
type Record struct {
	URL   *url.URL
	State State
}

// History emulates the browser session history: a list of records with a
// current position. Pushing discards any forward records.
type History struct {
	records []Record
	index   int
}

// NewHistory creates an empty history
func NewHistory() *History {
	return &History{index: -1}
}

// Push adds a record after the current one and makes it current
func (h *History) Push(r Record) {
	h.records = append(h.records[:h.index+1], r)
	h.index = len(h.records) - 1
}

// Replace overwrites the current record, or pushes when history is empty
func (h *History) Replace(r Record) {
	if h.index < 0 {
		h.Push(r)
		return
	}
	h.records[h.index] = r
}

// Drop removes the current record and makes the previous one current. The
// first record is never dropped.
func (h *History) Drop() (Record, bool) {
	if h.index < 1 {
		return Record{}, false
	}
	h.records = append(h.records[:h.index], h.records[h.index+1:]...)
	h.index--
	return h.records[h.index], true
}

// Current returns the current record
func (h *History) Current() (Record, bool) {
	if h.index < 0 {
		return Record{}, false
	}
	return h.records[h.index], true
}

// Back moves one record back and returns it
func (h *History) Back() (Record, bool) {
	return h.Go(-1)
}

// Forward moves one record forward and returns it
func (h *History) Forward() (Record, bool) {
	return h.Go(1)
}

// Go moves delta records and returns the new current record. Moves past
// either end do nothing.
func (h *History) Go(delta int) (Record, bool) {
	next := h.index + delta
	if delta == 0 || next < 0 || next >= len(h.records) {
		return Record{}, false
	}
	h.index = next
	return h.records[next], true
}

// Len returns the number of records
func (h *History) Len() int {
	return len(h.records)
}

// Index returns the current position
func (h *History) Index() int {
	return h.index
}
