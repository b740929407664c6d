// Package console holds the ordered output of code runs.
package console

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an entry.
type Kind string

const (
	Log    Kind = "log"
	Error  Kind = "error"
	Warn   Kind = "warn"
	Info   Kind = "info"
	Result Kind = "result"
)

// Entry is one line of console output.
type Entry struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntry stamps a new entry.
func NewEntry(kind Kind, text string) Entry {
	return Entry{ID: uuid.NewString(), Kind: kind, Text: text, Timestamp: time.Now()}
}

// Console is an append-only list of entries, cleared explicitly.
type Console struct {
	mu      sync.RWMutex
	entries []Entry
}

// Append adds e at the end.
func (c *Console) Append(e Entry) {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

// Entries returns a copy of all entries in order.
func (c *Console) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.entries...)
}

// Len returns the number of entries.
func (c *Console) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *Console) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}
