// Package server implements the append-only message log backing the global
// board and each group.
package server

import (
	"sync"
	"time"
)

// Record is one stored message. IDs are dense, 1-based, and never reused.
type Record struct {
	ID       int
	Author   string
	Content  string
	PostedAt time.Time
}

// Log is an append-only, ID-indexed message store. Each Log carries its own
// mutex so appends to independent logs never contend with each other.
type Log struct {
	mu      sync.Mutex
	records []Record
}

// NewLog returns an empty message log.
func NewLog() *Log {
	return &Log{}
}

// Append stores a new record and returns its assigned ID. Concurrent calls
// each receive a distinct sequential ID with no gaps.
func (l *Log) Append(author, content string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := len(l.records) + 1
	l.records = append(l.records, Record{
		ID:       id,
		Author:   author,
		Content:  content,
		PostedAt: time.Now(),
	})
	return id
}

// Get returns the record with the given ID, or ErrOutOfRange when the ID is
// below 1 or beyond the highest assigned ID.
func (l *Log) Get(id int) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id < 1 || id > len(l.records) {
		return Record{}, ErrOutOfRange
	}
	return l.records[id-1], nil
}

// Tail returns a copy of the last n records, oldest first. When n exceeds
// the log size every record is returned.
func (l *Log) Tail(n int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n > len(l.records) {
		n = len(l.records)
	}
	out := make([]Record, n)
	copy(out, l.records[len(l.records)-n:])
	return out
}

// Len returns the number of stored records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
