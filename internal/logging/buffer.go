package logging

import (
	"strings"
	"sync"
	"time"
)

// LogEntry is one record kept in the in-memory history.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Query selects entries from the history. Zero fields match everything.
type Query struct {
	Module string
	Level  string
	// Limit keeps only the newest entries.
	Limit int
}

func (q Query) matches(e LogEntry) bool {
	if q.Module != "" && e.Module != q.Module {
		return false
	}
	return q.Level == "" || strings.EqualFold(e.Level, q.Level)
}

// RingBuffer keeps the last N log entries. The oldest entry is overwritten
// once the buffer is full.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewRingBuffer creates a history holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{entries: make([]LogEntry, size)}
}

// Write appends entry.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
}

// ReadAll returns every entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Query(Query{})
}

// Query returns the matching entries, oldest first.
func (rb *RingBuffer) Query(q Query) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []LogEntry
	visit := func(entries []LogEntry) {
		for _, e := range entries {
			if q.matches(e) {
				out = append(out, e)
			}
		}
	}
	if rb.full {
		visit(rb.entries[rb.next:])
	}
	visit(rb.entries[:rb.next])

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

// Count returns the number of entries held.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}
