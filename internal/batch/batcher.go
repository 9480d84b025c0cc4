// Package batch buffers generated SQL statements and flushes them against
// the destination database as a single transaction once a threshold is
// crossed.
package batch

import (
	"database/sql"
	"fmt"
	"strings"
)

// Batcher buffers pending INSERT statements and tracks how many of them
// are "progress-contributing" (as opposed to supporting inserts into an
// identity-map table, which don't count toward merge progress — see
// spec.md §4.3).
type Batcher struct {
	dest      *sql.DB
	threshold int
	pending   []string
	count     int
}

// New returns a Batcher that flushes dest once at least threshold
// statements are pending.
func New(dest *sql.DB, threshold int) *Batcher {
	if threshold <= 0 {
		threshold = 1
	}
	return &Batcher{dest: dest, threshold: threshold}
}

// Insert appends stmt to the pending buffer as a progress-contributing
// insert, then flushes if the threshold has been crossed.
//
// Returns the number of progress-contributing rows committed by the flush
// this call triggered, or 0 if no flush occurred.
func (b *Batcher) Insert(stmt string) (int, error) {
	b.pending = append(b.pending, stmt)
	b.count++
	return b.maybeFlush()
}

// InsertSupporting appends stmt to the pending buffer without incrementing
// the progress count, then flushes if the threshold has been crossed.
func (b *Batcher) InsertSupporting(stmt string) (int, error) {
	b.pending = append(b.pending, stmt)
	return b.maybeFlush()
}

func (b *Batcher) maybeFlush() (int, error) {
	if len(b.pending) >= b.threshold {
		return b.Flush()
	}
	return 0, nil
}

// Flush atomically executes every pending statement as a single
// transaction, clears the buffer, and returns (and zeros) the progress
// count accumulated since the last flush. A flush of an empty buffer is a
// cheap no-op that returns 0.
//
// Any driver error here is fatal to the merge: there is no partial commit
// and no retry (spec.md §4.3, §7).
func (b *Batcher) Flush() (int, error) {
	if len(b.pending) == 0 {
		return 0, nil
	}

	batch := "BEGIN TRANSACTION; " + strings.Join(b.pending, "; ") + "; COMMIT;"
	if _, err := b.dest.Exec(batch); err != nil {
		return 0, fmt.Errorf("flushing batch of %d statements: %w", len(b.pending), err)
	}

	b.pending = b.pending[:0]
	count := b.count
	b.count = 0
	return count, nil
}
