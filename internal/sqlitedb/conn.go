// Package sqlitedb opens the source and destination connections the merge
// engine operates against.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSource opens an existing SQLite file read-write (the merge engine
// never writes to a source, but go-sqlite3 has no read-only open mode that
// still lets PRAGMA queries run against it).
func OpenSource(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening source %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening source %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to source %s: %w", path, err)
	}
	return db, nil
}

// OpenDestination opens the destination file, creating it if absent (it
// does not truncate an existing file; the CLI deletes one beforehand via
// RemoveExisting when --remove is given), leaving it in SQLite's default
// PRAGMA state. Call ApplyPerformancePragmas once the caller is ready to
// start merging.
func OpenDestination(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening destination %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to destination %s: %w", path, err)
	}
	return db, nil
}

// performancePragmas relaxes durability for the duration of a merge; undone
// by RestoreSafetyPragmas once every model has been merged.
var performancePragmas = []string{
	"PRAGMA synchronous = OFF",
	"PRAGMA journal_mode = OFF",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA cache_size = -16000",
	"PRAGMA foreign_keys = OFF",
}

var safetyPragmas = []string{
	"PRAGMA synchronous = ON",
	"PRAGMA journal_mode = DELETE",
	"PRAGMA foreign_keys = ON",
}

// ApplyPerformancePragmas relaxes durability on dest for the duration of a
// merge (spec.md §4.7 step 3).
func ApplyPerformancePragmas(ctx context.Context, dest *sql.DB) error {
	for _, stmt := range performancePragmas {
		if _, err := dest.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying performance pragma %q: %w", stmt, err)
		}
	}
	return nil
}

// RestoreSafetyPragmas undoes ApplyPerformancePragmas (spec.md §4.7 step 6).
func RestoreSafetyPragmas(ctx context.Context, dest *sql.DB) error {
	for _, stmt := range safetyPragmas {
		if _, err := dest.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("restoring safety pragma %q: %w", stmt, err)
		}
	}
	return nil
}

// RemoveExisting deletes the file at path if present. Used by the CLI's
// --remove flag before OpenDestination is called.
func RemoveExisting(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing existing destination %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a file already exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CloseAll closes every connection in dbs, collecting and joining any
// errors rather than stopping at the first one, so a failure to close one
// source doesn't leak the rest.
func CloseAll(dbs ...*sql.DB) error {
	var errs []error
	for _, db := range dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("closing connections: %v", errs)
}
