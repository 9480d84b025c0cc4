// Package idmap manages the per-model old_id -> new_id mapping tables the
// merge engine uses to rewrite foreign keys on the fly.
package idmap

import (
	"database/sql"
	"fmt"
)

// TableName returns the identity-map table name for the given model.
func TableName(modelName string) string {
	return fmt.Sprintf("%s_id_map", modelName)
}

// Create creates the (unindexed) identity-map table for modelName in dest.
// Indices are deliberately deferred to CreateIndices, which must run after
// the model's bulk inserts — building them once at the end is far faster
// than maintaining them row by row.
func Create(dest *sql.DB, modelName string) error {
	table := TableName(modelName)
	_, err := dest.Exec(fmt.Sprintf(
		`CREATE TABLE "%s" (old_id TEXT NOT NULL, new_id TEXT NOT NULL)`, table,
	))
	if err != nil {
		return fmt.Errorf("creating id-map table %s: %w", table, err)
	}
	return nil
}

// CreateIndices builds the three indices spec.md §3 requires on a
// populated identity-map table: (old_id), (new_id), (new_id, old_id).
func CreateIndices(dest *sql.DB, modelName string) error {
	table := TableName(modelName)
	stmt := fmt.Sprintf(
		`CREATE INDEX "%[1]s_old_id" ON "%[1]s"("old_id");
		 CREATE INDEX "%[1]s_new_id" ON "%[1]s"("new_id");
		 CREATE INDEX "%[1]s_new_id_old_id" ON "%[1]s"("new_id", "old_id");`,
		table,
	)
	if _, err := dest.Exec(stmt); err != nil {
		return fmt.Errorf("creating id-map indices for %s: %w", table, err)
	}
	return nil
}

// Drop removes a model's identity-map indices (if present) and table (if
// present). Safe to call even if Create/CreateIndices never ran.
func Drop(dest *sql.DB, modelName string) error {
	table := TableName(modelName)
	stmt := fmt.Sprintf(
		`DROP INDEX IF EXISTS "%[1]s_old_id";
		 DROP INDEX IF EXISTS "%[1]s_new_id";
		 DROP INDEX IF EXISTS "%[1]s_new_id_old_id";
		 DROP TABLE IF EXISTS "%[1]s";`,
		table,
	)
	if _, err := dest.Exec(stmt); err != nil {
		return fmt.Errorf("dropping id-map table %s: %w", table, err)
	}
	return nil
}
