package merge

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/camertron/prismerge/internal/graph"
	"github.com/camertron/prismerge/internal/idmap"
	"github.com/camertron/prismerge/internal/progress"
	"github.com/camertron/prismerge/internal/schema"
	"github.com/camertron/prismerge/internal/sqlitedb"
)

// Options configures a single run of the orchestrator.
type Options struct {
	Threshold  int  // batcher.insert threshold (§4.3); the CLI's --min-inserts
	KeepIDMaps bool // skip the drop step (§4.7.9)
}

// Orchestrator drives the full merge: schema cloning, per-model merging in
// topological order, integrity verification, and cleanup (spec.md §4.7).
type Orchestrator struct {
	Dest     *sql.DB
	Sources  []*sql.DB
	Schema   *schema.Schema
	Options  Options
	Reporter progress.Reporter
}

// Run executes the full merge and returns a per-model row-count summary
// alongside any integrity warnings collected along the way. A failure inside
// a model's merge is returned as a FatalMergeError, a cancellation noticed
// between models as ctx's own error, and a failure in any other step as a
// wrapped error; summaries and warnings are returned alongside a nil error.
// Warnings are not printed here; printing them is left to the caller.
//
// ctx is passed to the PRAGMA statements and is otherwise checked at
// iteration boundaries only — between models here, and between sources/rows
// inside Driver.MergeModel (spec.md §5) — so a cancellation can still leave
// one model's worth of rows committed to dest.
func (o *Orchestrator) Run(ctx context.Context) ([]ModelSummary, []IntegrityWarning, error) {
	if len(o.Sources) == 0 {
		return nil, nil, fmt.Errorf("merge requires at least one source database")
	}

	if err := sqlitedb.ApplyPerformancePragmas(ctx, o.Dest); err != nil {
		return nil, nil, err
	}

	if err := o.cloneSchema(); err != nil {
		return nil, nil, fmt.Errorf("cloning schema from source #1: %w", err)
	}

	models := graph.Order(o.Schema)

	driver := NewDriver(o.Dest, o.Sources, o.Schema, o.Options.Threshold, o.Reporter)
	summaries := make([]ModelSummary, 0, len(models))
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rowsMerged, err := driver.MergeModel(ctx, model)
		if err != nil {
			return nil, nil, err
		}
		summaries = append(summaries, ModelSummary{Model: model.Name, RowsMerged: rowsMerged})
	}

	if err := sqlitedb.RestoreSafetyPragmas(ctx, o.Dest); err != nil {
		return nil, nil, err
	}

	warnings, err := o.checkIntegrity(models)
	if err != nil {
		return nil, nil, fmt.Errorf("checking referential integrity: %w", err)
	}

	if !o.Options.KeepIDMaps {
		for _, model := range models {
			if err := idmap.Drop(o.Dest, model.Name); err != nil {
				return nil, nil, fmt.Errorf("dropping id-map table for %s: %w", model.Name, err)
			}
		}
	}

	if _, err := o.Dest.Exec("VACUUM"); err != nil {
		return nil, nil, fmt.Errorf("vacuuming destination: %w", err)
	}

	return summaries, warnings, nil
}

// cloneSchema copies every CREATE statement (table and index DDL) out of
// source #1's sqlite_master and executes it verbatim against the
// destination, per spec.md §4.7 step 4.
func (o *Orchestrator) cloneSchema() error {
	rows, err := o.Sources[0].Query(
		`SELECT sql FROM sqlite_master WHERE sql IS NOT NULL AND type IN ('table', 'index') ORDER BY CASE type WHEN 'table' THEN 0 ELSE 1 END`,
	)
	if err != nil {
		return fmt.Errorf("reading source #1 catalog: %w", err)
	}
	defer rows.Close()

	var ddl []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return fmt.Errorf("scanning catalog row: %w", err)
		}
		ddl = append(ddl, stmt)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, stmt := range ddl {
		if _, err := o.Dest.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt, err)
		}
	}
	return nil
}

// checkIntegrity runs SQLite's own foreign-key checker against every
// merged table and returns a warning for each one with a nonzero
// violation count (spec.md §4.7 step 7; this is where the "missing map
// entry" failure mode surfaces: buildInsert keeps a foreign key the map
// could not resolve, and the checker reports it as a dangling reference).
func (o *Orchestrator) checkIntegrity(models []*schema.Model) ([]IntegrityWarning, error) {
	var warnings []IntegrityWarning

	for _, model := range models {
		rows, err := o.Dest.Query(fmt.Sprintf(`PRAGMA foreign_key_check("%s")`, model.Name))
		if err != nil {
			return nil, fmt.Errorf("checking foreign keys on %s: %w", model.Name, err)
		}

		count := 0
		for rows.Next() {
			count++
		}
		closeErr := rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, closeErr
		}

		if count > 0 {
			warnings = append(warnings, IntegrityWarning{Table: model.Name, Violations: count})
		}
	}

	return warnings, nil
}
