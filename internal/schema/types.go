// Package schema holds the declarative model shapes the merge engine
// consumes and a small reader that builds them from a schema file.
package schema

import "fmt"

// ColumnType describes the declared type of a column.
type ColumnType struct {
	Name       string
	Collection bool
	Nullable   bool
}

// Relation describes a foreign key: the local columns that hold the key,
// and the columns on the target model they reference.
type Relation struct {
	Fields     []string
	References []string
}

// Column is a single field on a Model.
type Column struct {
	Name       string
	Type       ColumnType
	Relation   *Relation
	Unique     bool
	PrimaryKey bool
}

// HasRelation reports whether the column carries a @relation attribute.
func (c *Column) HasRelation() bool {
	return c.Relation != nil
}

// Quoted returns the SQLite expression that selects this column's value
// through the database's own quote() function, aliased back to the
// column's own name.
func (c *Column) Quoted(modelName string) string {
	return fmt.Sprintf(`quote("%s"."%s") AS "%s"`, modelName, c.Name, c.Name)
}

// IsRegular reports whether a column is neither the primary key, nor a
// collection, nor a relation, nor a reference to another model by type
// name — i.e. a plain scalar column that can be copied verbatim.
func (c *Column) IsRegular(s *Schema) bool {
	if c.PrimaryKey || c.Type.Collection || c.HasRelation() {
		return false
	}
	_, isModelRef := s.Models[c.Type.Name]
	return !isModelRef
}

// Unique is a model's composite or single-column uniqueness constraint.
type Unique struct {
	ColumnNames []string
}

// Model is a single table in the schema: a name, its columns, at most one
// effective unique constraint, and the index of its (required) primary key
// column.
type Model struct {
	Name            string
	Columns         []Column
	Unique          *Unique
	PrimaryKeyIndex int // -1 if none
}

// NewModel builds a Model, locating the primary key column among columns.
func NewModel(name string, columns []Column, unique *Unique) *Model {
	pkIndex := -1
	for i, c := range columns {
		if c.PrimaryKey {
			pkIndex = i
			break
		}
	}

	// A declared composite @@unique wins; otherwise fall back to the first
	// @unique column, exactly as spec.md §6 describes.
	if unique == nil {
		for _, c := range columns {
			if c.Unique {
				unique = &Unique{ColumnNames: []string{c.Name}}
				break
			}
		}
	}

	return &Model{
		Name:            name,
		Columns:         columns,
		Unique:          unique,
		PrimaryKeyIndex: pkIndex,
	}
}

// PrimaryKey returns the model's primary key column, or nil if it has none.
//
// The merge engine never validates that a primary key's stored value is
// actually a UUID — any TEXT value is accepted and treated as opaque, per
// the open question recorded in spec.md §9 and DESIGN.md.
func (m *Model) PrimaryKey() *Column {
	if m.PrimaryKeyIndex < 0 {
		return nil
	}
	return &m.Columns[m.PrimaryKeyIndex]
}

// Column returns the named column, or nil if the model has no such column.
func (m *Model) Column(name string) *Column {
	for i := range m.Columns {
		if m.Columns[i].Name == name {
			return &m.Columns[i]
		}
	}
	return nil
}

// RelatedColumn returns the column on m whose @relation's Fields list
// contains col's name, i.e. the relation column that "owns" col as one of
// its foreign key fields. Returns nil if col isn't part of any relation.
func (m *Model) RelatedColumn(col *Column) *Column {
	for i := range m.Columns {
		rel := m.Columns[i].Relation
		if rel == nil {
			continue
		}
		for _, f := range rel.Fields {
			if f == col.Name {
				return &m.Columns[i]
			}
		}
	}
	return nil
}

// RegularColumns returns the columns that satisfy IsRegular for this model,
// in declaration order.
func (m *Model) RegularColumns(s *Schema) []*Column {
	var out []*Column
	for i := range m.Columns {
		if m.Columns[i].IsRegular(s) {
			out = append(out, &m.Columns[i])
		}
	}
	return out
}

// Schema is the full set of models the merge engine operates over, keyed
// by model name.
type Schema struct {
	Models map[string]*Model
}

// New returns an empty Schema.
func New() *Schema {
	return &Schema{Models: make(map[string]*Model)}
}

// Validate checks the invariants spec.md §3 and §7 require before any
// merging begins: every model has a primary key, and every declared unique
// column actually exists on its model.
func (s *Schema) Validate() error {
	for name, m := range s.Models {
		if m.PrimaryKey() == nil {
			return &SchemaError{Model: name, Msg: "model has no primary key column"}
		}
		if m.Unique != nil {
			for _, colName := range m.Unique.ColumnNames {
				if m.Column(colName) == nil {
					return &SchemaError{
						Model: name,
						Msg:   fmt.Sprintf("unique constraint references unknown column %q", colName),
					}
				}
			}
		}
	}
	return nil
}

// SchemaError reports a schema violation detected before merging starts
// (spec.md §7's "Schema violation" error kind).
type SchemaError struct {
	Model string
	Msg   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in model %q: %s", e.Model, e.Msg)
}
