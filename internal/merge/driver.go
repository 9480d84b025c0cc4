// Package merge implements the per-model merge driver and the top-level
// orchestrator that drives it across every model in a schema.
package merge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/camertron/prismerge/internal/batch"
	"github.com/camertron/prismerge/internal/idmap"
	"github.com/camertron/prismerge/internal/probe"
	"github.com/camertron/prismerge/internal/progress"
	"github.com/camertron/prismerge/internal/rowstream"
	"github.com/camertron/prismerge/internal/schema"
)

// Driver merges a single model from every source into dest, threading rows
// through a shared identity-map table so later models can resolve foreign
// keys that point at rows this model just inserted.
type Driver struct {
	Dest      *sql.DB
	Sources   []*sql.DB
	Schema    *schema.Schema
	Threshold int
	Reporter  progress.Reporter
}

// NewDriver returns a Driver. A nil reporter is replaced with progress.Null.
func NewDriver(dest *sql.DB, sources []*sql.DB, s *schema.Schema, threshold int, reporter progress.Reporter) *Driver {
	if reporter == nil {
		reporter = progress.Null{}
	}
	return &Driver{Dest: dest, Sources: sources, Schema: s, Threshold: threshold, Reporter: reporter}
}

// MergeModel runs the full per-model merge (spec.md §4.6) for model.
//
// ctx is checked at iteration boundaries only — between sources and between
// rows within a source — never mid-statement (spec.md §5). A canceled
// context aborts the model with a FatalMergeError; the destination is left
// in whatever state the last completed flush left it in, same as any other
// fatal error.
func (d *Driver) MergeModel(ctx context.Context, model *schema.Model) (int, error) {
	// Phase A: setup.
	if err := idmap.Create(d.Dest, model.Name); err != nil {
		return 0, &FatalMergeError{Model: model.Name, Phase: "setup", Err: err}
	}

	regular := model.RegularColumns(d.Schema)
	probeTmpl := probe.Compile(model)

	// Phase B: primary selection.
	counts := make([]int, len(d.Sources))
	total := 0
	primary := 0
	for i, src := range d.Sources {
		n, err := rowstream.Count(src, model)
		if err != nil {
			return 0, &FatalMergeError{Model: model.Name, Phase: "counting", Err: err}
		}
		counts[i] = n
		total += n
		if n > counts[primary] {
			primary = i
		}
	}

	d.Reporter.StartModel(model.Name, total)

	b := batch.New(d.Dest, d.Threshold)

	order := make([]int, 0, len(d.Sources))
	order = append(order, primary)
	for i := range d.Sources {
		if i != primary {
			order = append(order, i)
		}
	}

	// Phase C: iteration.
	for _, srcIdx := range order {
		if err := ctx.Err(); err != nil {
			return 0, &FatalMergeError{Model: model.Name, Phase: "iterating rows", Err: err}
		}

		isSecondary := srcIdx != primary
		src := d.Sources[srcIdx]

		err := rowstream.Stream(src, d.Schema, model, func(row rowstream.Row) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := d.mergeRow(model, regular, probeTmpl, b, row, isSecondary)
			if err != nil {
				return err
			}
			if n > 0 {
				d.Reporter.Advance(n)
			}
			return nil
		})
		if err != nil {
			return 0, &FatalMergeError{Model: model.Name, Phase: "iterating rows", Err: err}
		}

		// Commit this source's rows so the uniqueness probe run for the
		// next source's rows can see them in dest.
		if n, err := b.Flush(); err != nil {
			return 0, &FatalMergeError{Model: model.Name, Phase: "flushing source", Err: err}
		} else if n > 0 {
			d.Reporter.Advance(n)
		}
	}

	// Phase D: finalize.
	if n, err := b.Flush(); err != nil {
		return 0, &FatalMergeError{Model: model.Name, Phase: "final flush", Err: err}
	} else if n > 0 {
		d.Reporter.Advance(n)
	}

	if err := idmap.CreateIndices(d.Dest, model.Name); err != nil {
		return 0, &FatalMergeError{Model: model.Name, Phase: "building id-map indices", Err: err}
	}

	rowsMerged, err := rowstream.Count(d.Dest, model)
	if err != nil {
		return 0, &FatalMergeError{Model: model.Name, Phase: "counting merged rows", Err: err}
	}

	d.Reporter.FinishModel(model.Name)
	return rowsMerged, nil
}

// mergeRow processes a single source row per spec.md §4.6 phase C and
// returns the number of progress-contributing rows committed by any batch
// flush the row's inserts triggered (0 if no flush occurred).
func (d *Driver) mergeRow(model *schema.Model, regular []*schema.Column, probeTmpl *probe.Template, b *batch.Batcher, row rowstream.Row, isSecondary bool) (int, error) {
	oldPk := row.RawPK

	var existingPk string
	matched := false
	if isSecondary && probeTmpl != nil {
		newID, found, err := probeTmpl.Find(d.Dest, row.QuotedColumns)
		if err != nil {
			return 0, fmt.Errorf("probing %s row %s: %w", model.Name, oldPk, err)
		}
		if found {
			existingPk, matched = newID, true
		}
	}

	if matched {
		stmt := fmt.Sprintf(
			`INSERT INTO "%s" (old_id, new_id) VALUES ('%s', %s)`,
			idmap.TableName(model.Name), oldPk, existingPk,
		)
		return b.Insert(stmt)
	}

	var newPk string
	if isSecondary {
		newPk = "'" + uuid.NewString() + "'"
	} else {
		newPk = row.QuotedColumns[model.PrimaryKey().Name]
	}

	insertStmt := buildInsert(model, regular, row, newPk)
	progressCount, err := b.Insert(insertStmt)
	if err != nil {
		return 0, fmt.Errorf("inserting %s row %s: %w", model.Name, oldPk, err)
	}

	mapStmt := fmt.Sprintf(
		`INSERT INTO "%s" (old_id, new_id) VALUES ('%s', %s)`,
		idmap.TableName(model.Name), oldPk, newPk,
	)
	if _, err := b.InsertSupporting(mapStmt); err != nil {
		return 0, fmt.Errorf("inserting %s id-map row %s: %w", model.Name, oldPk, err)
	}

	return progressCount, nil
}

// buildInsert assembles the INSERT ... SELECT ... FROM (SELECT 1) AS dummy
// LEFT JOIN ... statement of spec.md §4.6 step 3. Regular columns that hold
// a foreign key are resolved through their target's identity-map table; when
// the map has no entry for the source value, that value is kept as is, so
// the dangling reference shows up in the post-merge foreign-key check.
// Every other regular column is spliced in as its already-quoted literal.
func buildInsert(model *schema.Model, regular []*schema.Column, row rowstream.Row, newPk string) string {
	pk := model.PrimaryKey()

	columns := []string{fmt.Sprintf(`"%s"`, pk.Name)}
	selects := []string{newPk}
	var joins []string

	for _, c := range regular {
		columns = append(columns, fmt.Sprintf(`"%s"`, c.Name))

		if related := model.RelatedColumn(c); related != nil {
			alias := c.Name + "_map"
			mapTable := idmap.TableName(related.Type.Name)
			oldFkQuoted := row.QuotedColumns[c.Name]

			joins = append(joins, fmt.Sprintf(
				`LEFT JOIN "%s" AS "%s" ON "%s".old_id = %s`,
				mapTable, alias, alias, oldFkQuoted,
			))
			selects = append(selects, fmt.Sprintf(`COALESCE("%s".new_id, %s)`, alias, oldFkQuoted))
		} else {
			selects = append(selects, row.QuotedColumns[c.Name])
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `INSERT INTO "%s" (%s)`, model.Name, strings.Join(columns, ", "))
	fmt.Fprintf(&b, "\nSELECT %s", strings.Join(selects, ", "))
	b.WriteString("\nFROM (SELECT 1) AS dummy")
	for _, j := range joins {
		b.WriteString("\n" + j)
	}
	b.WriteString("\nLIMIT 1")

	return b.String()
}
