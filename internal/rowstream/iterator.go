// Package rowstream streams rows out of one source database for a single
// model, pre-quoting every value with the source driver's own quote()
// function so the merge driver can splice values into destination SQL
// without knowing their types.
package rowstream

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/camertron/prismerge/internal/schema"
)

// Row is a single source row: the model's raw (unquoted) primary key, used
// to key identity-map lookups, and a map from column name to its
// already-quoted value (every regular column plus the primary key), ready
// to be interpolated verbatim into destination SQL.
type Row struct {
	RawPK         string
	QuotedColumns map[string]string
}

// BuildSelect constructs the SELECT statement spec.md §4.4 describes: the
// model's raw primary key, its quoted primary key, and a quote()-wrapped
// column for every regular column on the model.
func BuildSelect(s *schema.Schema, model *schema.Model) string {
	pk := model.PrimaryKey()
	regular := model.RegularColumns(s)

	selectList := []string{
		fmt.Sprintf(`"%s" AS unquotedPk`, pk.Name),
		pk.Quoted(model.Name),
	}
	for _, c := range regular {
		selectList = append(selectList, c.Quoted(model.Name))
	}

	return fmt.Sprintf(
		`SELECT %s FROM "%s"`,
		strings.Join(selectList, ",\n       "),
		model.Name,
	)
}

// Stream executes the model's select statement against src and invokes fn
// once per row. It never buffers the full result set, so it tolerates
// arbitrary row counts.
func Stream(src *sql.DB, s *schema.Schema, model *schema.Model, fn func(Row) error) error {
	regular := model.RegularColumns(s)

	query := BuildSelect(s, model)
	rows, err := src.Query(query)
	if err != nil {
		return fmt.Errorf("querying %s rows: %w", model.Name, err)
	}
	defer rows.Close()

	// Scan targets: unquotedPk, quoted pk, then one per regular column, in
	// the same order BuildSelect emitted them.
	dest := make([]any, 1+1+len(regular))
	var rawPK, quotedPK string
	dest[0] = &rawPK
	dest[1] = &quotedPK
	quotedValues := make([]string, len(regular))
	for i := range regular {
		dest[2+i] = &quotedValues[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scanning %s row: %w", model.Name, err)
		}

		cols := make(map[string]string, len(regular)+1)
		cols[model.PrimaryKey().Name] = quotedPK
		for i, c := range regular {
			cols[c.Name] = quotedValues[i]
		}

		if err := fn(Row{RawPK: rawPK, QuotedColumns: cols}); err != nil {
			return err
		}
	}

	return rows.Err()
}

// Count returns the number of rows the model currently has in src.
func Count(src *sql.DB, model *schema.Model) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT("%s") FROM "%s"`, model.PrimaryKey().Name, model.Name)
	if err := src.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s rows: %w", model.Name, err)
	}
	return n, nil
}
