package schema

import (
	"strings"
	"testing"
)

const ownerTodoSchema = `
model Owner {
  id   String @id
  name String @unique
}

model TodoList {
  id      String @id
  name    String
  ownerId String
  owner   Owner  @relation(fields: [ownerId], references: [id])

  @@unique([name, ownerId])
}
`

func TestParseOwnerTodoSchema(t *testing.T) {
	s, err := Parse(strings.NewReader(ownerTodoSchema))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(s.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(s.Models))
	}

	owner := s.Models["Owner"]
	if owner == nil {
		t.Fatal("expected Owner model")
	}
	if owner.PrimaryKey() == nil || owner.PrimaryKey().Name != "id" {
		t.Fatalf("expected Owner.id as primary key, got %+v", owner.PrimaryKey())
	}
	if owner.Unique == nil || len(owner.Unique.ColumnNames) != 1 || owner.Unique.ColumnNames[0] != "name" {
		t.Fatalf("expected Owner unique on [name], got %+v", owner.Unique)
	}

	todo := s.Models["TodoList"]
	if todo == nil {
		t.Fatal("expected TodoList model")
	}
	if todo.Unique == nil || len(todo.Unique.ColumnNames) != 2 {
		t.Fatalf("expected TodoList composite unique, got %+v", todo.Unique)
	}

	ownerCol := todo.Column("owner")
	if ownerCol == nil || !ownerCol.HasRelation() {
		t.Fatal("expected TodoList.owner to carry a relation")
	}
	if ownerCol.Relation.Fields[0] != "ownerId" || ownerCol.Relation.References[0] != "id" {
		t.Fatalf("unexpected relation: %+v", ownerCol.Relation)
	}

	ownerIDCol := todo.Column("ownerId")
	related := todo.RelatedColumn(ownerIDCol)
	if related == nil || related.Name != "owner" {
		t.Fatalf("expected ownerId's related column to be owner, got %+v", related)
	}

	regular := todo.RegularColumns(s)
	var names []string
	for _, c := range regular {
		names = append(names, c.Name)
	}
	// id is the PK and owner is the relation descriptor column itself, so
	// neither is regular; name and ownerId (the FK's actual data column)
	// both are — ownerId carries no @relation of its own, "owner" does.
	if len(names) != 2 || names[0] != "name" || names[1] != "ownerId" {
		t.Fatalf("expected regular columns [name ownerId], got %v", names)
	}
}

func TestValidateMissingPrimaryKey(t *testing.T) {
	s := New()
	s.Models["Broken"] = NewModel("Broken", []Column{
		{Name: "label", Type: ColumnType{Name: "String"}},
	}, nil)

	if err := s.Validate(); err == nil {
		t.Fatal("expected a schema error for a model with no primary key")
	}
}

func TestValidateUnknownUniqueColumn(t *testing.T) {
	s := New()
	s.Models["Broken"] = NewModel("Broken", []Column{
		{Name: "id", Type: ColumnType{Name: "String"}, PrimaryKey: true},
	}, &Unique{ColumnNames: []string{"nonexistent"}})

	if err := s.Validate(); err == nil {
		t.Fatal("expected a schema error for a unique constraint on an unknown column")
	}
}
