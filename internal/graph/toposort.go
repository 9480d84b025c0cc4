// Package graph orders a schema's models so that referenced models precede
// the models that reference them.
package graph

import (
	"sort"

	"github.com/camertron/prismerge/internal/schema"
)

// Order returns the schema's models in topological order: for every
// relation column on model A whose type names model B, B appears before A
// in the returned slice.
//
// Behavior on a cyclic relation graph is undefined (spec.md §1 and §4.1
// name this an explicit non-goal); in practice Kahn's algorithm below
// simply stops early and the remaining, still-in-degree-positive models are
// appended in name order so the function never panics or blocks.
func Order(s *schema.Schema) []*schema.Model {
	// dependsOn[A] = the B such that A has a relation to B (A depends on B,
	// B must be inserted first).
	dependsOn := make(map[string][]string, len(s.Models))
	dependents := make(map[string][]string, len(s.Models))
	inDegree := make(map[string]int, len(s.Models))

	for name := range s.Models {
		inDegree[name] = 0
	}

	for name, model := range s.Models {
		for _, col := range model.Columns {
			if col.Relation == nil {
				continue
			}
			target := col.Type.Name
			if _, ok := s.Models[target]; !ok || target == name {
				continue
			}
			dependsOn[name] = append(dependsOn[name], target)
			dependents[target] = append(dependents[target], name)
			inDegree[name]++
		}
	}

	// Deterministic starting frontier: models with no outgoing relations,
	// visited in name order.
	var frontier []string
	for name, deg := range inDegree {
		if deg == 0 {
			frontier = append(frontier, name)
		}
	}
	sort.Strings(frontier)

	var order []string
	for len(frontier) > 0 {
		sort.Strings(frontier)
		next := frontier[0]
		frontier = frontier[1:]
		order = append(order, next)

		var freed []string
		for _, dependent := range dependents[next] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		frontier = append(frontier, freed...)
	}

	if len(order) < len(s.Models) {
		// Cycle: append whatever's left, deterministically, rather than
		// dropping models silently.
		var remaining []string
		seen := make(map[string]bool, len(order))
		for _, n := range order {
			seen[n] = true
		}
		for name := range s.Models {
			if !seen[name] {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		order = append(order, remaining...)
	}

	models := make([]*schema.Model, len(order))
	for i, name := range order {
		models[i] = s.Models[name]
	}
	return models
}
