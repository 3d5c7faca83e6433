// Package audit provides an optional persistent sink for access-log entries.
// The in-memory decision ring stays authoritative; the archive is write-only
// from the engine's point of view and its failures never influence verdicts.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"admission-control/internal/access"
)

type Config struct {
	DataPath string
	InMemory bool
}

// Archive stores access-log entries in Badger, keyed by timestamp so scans
// come back in chronological order.
type Archive struct {
	db *badger.DB
}

var _ access.LogSink = (*Archive)(nil)

func NewArchive(config Config) (*Archive, error) {
	opts := badger.DefaultOptions(config.DataPath)

	if config.InMemory {
		opts = opts.WithInMemory(true)
	}

	opts = opts.WithLogger(nil) // Disable badger's default logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit archive: %w", err)
	}

	return &Archive{db: db}, nil
}

// Append writes one entry to the archive
func (a *Archive) Append(entry access.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	key := entryKey(entry)

	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// Recent returns up to limit archived entries, most recent first
func (a *Archive) Recent(limit int) ([]access.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []access.LogEntry

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts from the highest key
		for it.Seek([]byte{0xff}); it.Valid() && len(entries) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry access.LogEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit archive: %w", err)
	}

	return entries, nil
}

// Close closes the underlying store
func (a *Archive) Close() error {
	return a.db.Close()
}

func entryKey(entry access.LogEntry) []byte {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return []byte(fmt.Sprintf("%020d:%s", ts.UnixNano(), entry.ID))
}
