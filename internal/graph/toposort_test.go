package graph

import (
	"testing"

	"github.com/camertron/prismerge/internal/schema"
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
		{
			Name: "owner",
			Type: schema.ColumnType{Name: "Owner"},
			Relation: &schema.Relation{
				Fields:     []string{"ownerId"},
				References: []string{"id"},
			},
		},
	}, &schema.Unique{ColumnNames: []string{"name", "ownerId"}})
	return s
}

func TestOrderParentBeforeChild(t *testing.T) {
	order := Order(ownerTodoSchema())
	if len(order) != 2 {
		t.Fatalf("expected 2 models, got %d", len(order))
	}
	if order[0].Name != "Owner" || order[1].Name != "TodoList" {
		t.Fatalf("expected [Owner TodoList], got [%s %s]", order[0].Name, order[1].Name)
	}
}

func TestOrderDeterministicForUnrelatedModels(t *testing.T) {
	s := schema.New()
	s.Models["B"] = schema.NewModel("B", []schema.Column{
		{Name: "id", Type: schema.ColumnType{Name: "String"}, PrimaryKey: true},
	}, nil)
	s.Models["A"] = schema.NewModel("A", []schema.Column{
		{Name: "id", Type: schema.ColumnType{Name: "String"}, PrimaryKey: true},
	}, nil)

	order1 := Order(s)
	order2 := Order(s)

	if order1[0].Name != order2[0].Name || order1[1].Name != order2[1].Name {
		t.Fatal("expected Order to be deterministic across calls")
	}
}
