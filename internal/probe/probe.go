// Package probe builds and executes the unique-index existence check used
// to detect duplicate rows (by unique-constraint value) already present in
// the destination.
package probe

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/camertron/prismerge/internal/idmap"
	"github.com/camertron/prismerge/internal/schema"
)

// Template holds a compiled unique-index existence probe for one model.
// It is compiled once per model (when the model declares a unique
// constraint) and reused for every secondary-source row.
type Template struct {
	sql         string
	columnOrder []string // unique column names, in ?N substitution order
}

// Compile builds the probe template for model, or returns nil if the model
// has no unique constraint (in which case no existence check is ever
// needed).
//
// For each unique column, a column whose value is held through a foreign
// key (i.e. some other column on the model carries a @relation naming it
// as one of its Fields) gets a JOIN through that target's identity-map
// table, matching on new_id, with the WHERE clause comparing against
// old_id. A plain column gets a direct equality comparison. See spec.md
// §4.5; composite unique keys where two members are FKs to the *same*
// target model will produce two JOINs aliased to the same map-table name
// and are not handled correctly — documented, not fixed, per spec.md §9.
func Compile(model *schema.Model) *Template {
	if model.Unique == nil {
		return nil
	}

	var joins, wheres, order []string

	for i, name := range model.Unique.ColumnNames {
		col := model.Column(name)
		placeholder := fmt.Sprintf("?%d", i+1)
		order = append(order, name)

		if related := model.RelatedColumn(col); related != nil {
			mapTable := idmap.TableName(related.Type.Name)
			joins = append(joins, fmt.Sprintf(
				`JOIN "%s" ON "%s"."%s" = "%s".new_id`,
				mapTable, model.Name, col.Name, mapTable,
			))
			wheres = append(wheres, fmt.Sprintf(`"%s".old_id = %s`, mapTable, placeholder))
		} else {
			wheres = append(wheres, fmt.Sprintf(`%s = %s`, col.Name, placeholder))
		}
	}

	pk := model.PrimaryKey()
	query := fmt.Sprintf(
		"SELECT quote(%s) AS %s FROM \"%s\"\n  %s\nWHERE %s\nLIMIT 1;",
		pk.Name, pk.Name, model.Name,
		strings.Join(joins, "\n  "),
		strings.Join(wheres, " AND "),
	)

	return &Template{sql: query, columnOrder: order}
}

// Find substitutes each ?N placeholder with the already-quoted source
// value for the corresponding unique column (textual substitution, not
// parameter binding — see spec.md §4.5 and §9: the value has already been
// safely quoted by the source driver's own quote() function, and binding
// it again would double-escape it) and executes the probe against dest.
//
// Returns the matched row's quoted new_id and true if a match was found,
// or ("", false) if not.
func (t *Template) Find(dest *sql.DB, quotedValues map[string]string) (string, bool, error) {
	query := t.sql
	for i, name := range t.columnOrder {
		placeholder := "?" + strconv.Itoa(i+1)
		query = strings.ReplaceAll(query, placeholder, quotedValues[name])
	}

	var newID string
	err := dest.QueryRow(query).Scan(&newID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("executing uniqueness probe: %w", err)
	}
	return newID, true, nil
}
