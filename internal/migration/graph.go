package migration

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownDependencyError is returned when a migration references a
// dependency absent from the loaded set.
type UnknownDependencyError struct {
	Migration Key
	Missing   Key
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("migration %s depends on unknown migration %s", e.Migration, e.Missing)
}

// CycleError names the migrations participating in a dependency cycle.
type CycleError struct {
	Keys []Key
}

func (e *CycleError) Error() string {
	ids := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		ids[i] = k.String()
	}
	return "circular dependency among migrations: " + strings.Join(ids, ", ")
}

// Graph is the dependency graph over all known migrations. Nodes are
// keys in a flat map and edges are adjacency lists of keys, so an
// erroneous cyclic input is representable and reportable.
type Graph struct {
	migrations map[Key]*Migration
	// edges[dep] lists the migrations that depend on dep.
	edges map[Key][]Key
}

// BuildGraph validates and indexes a migration set. run_before entries
// are folded into the dependency edge set with reversed direction: if A
// runs before B, B behaves as if it depended on A.
func BuildGraph(migrations []*Migration) (*Graph, error) {
	g := &Graph{
		migrations: make(map[Key]*Migration, len(migrations)),
		edges:      make(map[Key][]Key),
	}

	for _, m := range migrations {
		key := m.Key()
		if _, exists := g.migrations[key]; exists {
			return nil, fmt.Errorf("duplicate migration %s", key)
		}
		g.migrations[key] = m
	}

	for _, m := range migrations {
		for _, dep := range m.Dependencies {
			if _, ok := g.migrations[dep]; !ok {
				return nil, &UnknownDependencyError{Migration: m.Key(), Missing: dep}
			}
			g.edges[dep] = append(g.edges[dep], m.Key())
		}
		for _, successor := range m.RunBefore {
			if _, ok := g.migrations[successor]; !ok {
				return nil, &UnknownDependencyError{Migration: m.Key(), Missing: successor}
			}
			g.edges[m.Key()] = append(g.edges[m.Key()], successor)
		}
	}

	return g, nil
}

func (g *Graph) Len() int {
	return len(g.migrations)
}

// Migration returns the node content for key, or nil.
func (g *Graph) Migration(key Key) *Migration {
	return g.migrations[key]
}

// Keys returns all node keys in lexicographic order.
func (g *Graph) Keys() []Key {
	keys := make([]Key, 0, len(g.migrations))
	for key := range g.migrations {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Linearize produces the single global apply order: Kahn's algorithm
// with a lexicographic tie-break among simultaneously-ready nodes, so
// the order is reproducible across runs and machines.
func (g *Graph) Linearize() ([]Key, error) {
	inDegree := make(map[Key]int, len(g.migrations))
	for key := range g.migrations {
		inDegree[key] = 0
	}
	for _, dependents := range g.edges {
		for _, d := range dependents {
			inDegree[d]++
		}
	}

	var ready []Key
	for key, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, key)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Less(ready[j]) })

	order := make([]Key, 0, len(g.migrations))
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		order = append(order, key)

		released := false
		for _, dependent := range g.edges[key] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			sort.Slice(ready, func(i, j int) bool { return ready[i].Less(ready[j]) })
		}
	}

	if len(order) != len(g.migrations) {
		var remaining []Key
		placed := make(map[Key]bool, len(order))
		for _, key := range order {
			placed[key] = true
		}
		for key := range g.migrations {
			if !placed[key] {
				remaining = append(remaining, key)
			}
		}
		sort.Slice(remaining, func(i, j int) bool { return remaining[i].Less(remaining[j]) })
		return nil, &CycleError{Keys: remaining}
	}

	return order, nil
}

// Plan returns the migrations in linearized order.
func (g *Graph) Plan() ([]*Migration, error) {
	order, err := g.Linearize()
	if err != nil {
		return nil, err
	}
	plan := make([]*Migration, len(order))
	for i, key := range order {
		plan[i] = g.migrations[key]
	}
	return plan, nil
}
