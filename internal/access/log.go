package access

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogEntry is one recorded access decision
type LogEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	IPAddress string    `json:"ip_address"`
	Operation Operation `json:"operation"`
	Resource  string    `json:"resource"`
	Result    string    `json:"result"` // allowed or denied
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// LogSink receives every appended entry, e.g. a persistent audit archive
type LogSink interface {
	Append(entry LogEntry) error
}

// Log is a bounded in-memory decision log. When the buffer is full the oldest
// dropBatch entries are discarded in one batch rather than one at a time.
type Log struct {
	mu        sync.Mutex
	entries   []LogEntry
	capacity  int
	dropBatch int
	sink      LogSink
}

// NewLog creates a decision log holding at most capacity entries
func NewLog(capacity, dropBatch int) *Log {
	if capacity <= 0 {
		capacity = 10000
	}
	if dropBatch <= 0 || dropBatch > capacity {
		dropBatch = capacity / 2
	}

	return &Log{
		entries:   make([]LogEntry, 0, capacity),
		capacity:  capacity,
		dropBatch: dropBatch,
	}
}

// SetSink attaches an optional sink that observes every appended entry
func (l *Log) SetSink(sink LogSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

// Append records a decision, assigning the entry an ID and timestamp if unset
func (l *Log) Append(entry LogEntry) LogEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()

	if len(l.entries) >= l.capacity {
		remaining := len(l.entries) - l.dropBatch
		kept := make([]LogEntry, remaining, l.capacity)
		copy(kept, l.entries[l.dropBatch:])
		l.entries = kept
	}

	l.entries = append(l.entries, entry)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		// Sink failures must not affect the admission decision
		_ = sink.Append(entry)
	}

	return entry
}

// Recent returns up to limit entries, most recent first. A non-positive limit
// returns all entries.
func (l *Log) Recent(limit int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]LogEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = l.entries[n-1-i]
	}

	return out
}

// Len returns the current number of buffered entries
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
