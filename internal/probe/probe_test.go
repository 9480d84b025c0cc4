package probe

import (
	"database/sql"
	"testing"

	"github.com/camertron/prismerge/internal/idmap"
	"github.com/camertron/prismerge/internal/schema"

	_ "github.com/mattn/go-sqlite3"
)

func ownerTodoSchema() *schema.Schema {
	s := schema.New()
	s.Models["Owner"] = schema.NewModel("Owner", []schema.Column{
		{Name: "id", Type: schema.ColumnType{Name: "String"}, PrimaryKey: true},
		{Name: "name", Type: schema.ColumnType{Name: "String"}, Unique: true},
	}, nil)
	s.Models["TodoList"] = schema.NewModel("TodoList", []schema.Column{
		{Name: "id", Type: schema.ColumnType{Name: "String"}, PrimaryKey: true},
		{Name: "name", Type: schema.ColumnType{Name: "String"}},
		{Name: "ownerId", Type: schema.ColumnType{Name: "String"}},
		{Name: "owner", Type: schema.ColumnType{Name: "Owner"}, Relation: &schema.Relation{
			Fields: []string{"ownerId"}, References: []string{"id"},
		}},
	}, &schema.Unique{ColumnNames: []string{"name", "ownerId"}})
	return s
}

func openMemDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	return db
}

func TestCompileNoUniqueReturnsNil(t *testing.T) {
	s := schema.New()
	s.Models["Plain"] = schema.NewModel("Plain", []schema.Column{
		{Name: "id", Type: schema.ColumnType{Name: "String"}, PrimaryKey: true},
	}, nil)

	if tmpl := Compile(s.Models["Plain"]); tmpl != nil {
		t.Fatalf("expected nil template for a model with no unique constraint, got %+v", tmpl)
	}
}

func TestFindPlainUniqueColumn(t *testing.T) {
	s := ownerTodoSchema()
	db := openMemDB(t)
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE "Owner" (id TEXT, name TEXT)`); err != nil {
		t.Fatalf("creating Owner table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO "Owner" (id, name) VALUES ('owner-1', 'Alice')`); err != nil {
		t.Fatalf("seeding Owner row: %v", err)
	}

	tmpl := Compile(s.Models["Owner"])
	if tmpl == nil {
		t.Fatal("expected a compiled template for Owner")
	}

	newID, found, err := tmpl.Find(db, map[string]string{"name": "'Alice'"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !found {
		t.Fatal("expected a match for an existing name")
	}
	if newID != "'owner-1'" {
		t.Fatalf("expected matched pk 'owner-1', got %q", newID)
	}

	_, found, err = tmpl.Find(db, map[string]string{"name": "'Bob'"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if found {
		t.Fatal("expected no match for a name that doesn't exist")
	}
}

func TestFindUniqueColumnThroughForeignKey(t *testing.T) {
	s := ownerTodoSchema()
	db := openMemDB(t)
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE "TodoList" (id TEXT, name TEXT, ownerId TEXT)`); err != nil {
		t.Fatalf("creating TodoList table: %v", err)
	}
	if err := idmap.Create(db, "Owner"); err != nil {
		t.Fatalf("creating Owner id map: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO "TodoList" (id, name, ownerId) VALUES ('todo-1', 'Groceries', 'new-owner-1')`); err != nil {
		t.Fatalf("seeding TodoList row: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO Owner_id_map (old_id, new_id) VALUES ('old-owner-1', 'new-owner-1')`); err != nil {
		t.Fatalf("seeding Owner id map: %v", err)
	}

	tmpl := Compile(s.Models["TodoList"])
	if tmpl == nil {
		t.Fatal("expected a compiled template for TodoList")
	}

	newID, found, err := tmpl.Find(db, map[string]string{
		"name":    "'Groceries'",
		"ownerId": "'old-owner-1'",
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !found {
		t.Fatal("expected a match through the Owner id map")
	}
	if newID != "'todo-1'" {
		t.Fatalf("expected matched pk 'todo-1', got %q", newID)
	}

	_, found, err = tmpl.Find(db, map[string]string{
		"name":    "'Groceries'",
		"ownerId": "'some-other-owner'",
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if found {
		t.Fatal("expected no match when the FK's old_id doesn't map to the same row's owner")
	}
}
