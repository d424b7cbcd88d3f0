package migration

import (
	"errors"
	"testing"
)

func mig(app, name string, deps ...Key) *Migration {
	m := New(app, name)
	m.Dependencies = deps
	return m
}

func TestBuildGraph_UnknownDependency(t *testing.T) {
	migrations := []*Migration{
		mig("shop", "0002_orders", NewKey("shop", "0001_initial")),
	}

	_, err := BuildGraph(migrations)
	if err == nil {
		t.Fatal("Expected unknown dependency to fail graph construction")
	}

	var unknownErr *UnknownDependencyError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("Expected UnknownDependencyError, got %T: %v", err, err)
	}
	if unknownErr.Missing != NewKey("shop", "0001_initial") {
		t.Errorf("Missing = %s, want shop.0001_initial", unknownErr.Missing)
	}
	if unknownErr.Migration != NewKey("shop", "0002_orders") {
		t.Errorf("Migration = %s, want shop.0002_orders", unknownErr.Migration)
	}
}

func TestBuildGraph_DuplicateKey(t *testing.T) {
	migrations := []*Migration{
		mig("shop", "0001_initial"),
		mig("shop", "0001_initial"),
	}
	if _, err := BuildGraph(migrations); err == nil {
		t.Fatal("Expected duplicate key to fail graph construction")
	}
}

// Every migration must appear after all of its dependencies in the
// linearized order.
func TestLinearize_TopologicalSoundness(t *testing.T) {
	migrations := []*Migration{
		mig("shop", "0001_initial"),
		mig("shop", "0002_orders", NewKey("shop", "0001_initial"), NewKey("auth", "0001_initial")),
		mig("auth", "0001_initial"),
		mig("auth", "0002_groups", NewKey("auth", "0001_initial")),
		mig("crm", "0001_initial", NewKey("shop", "0002_orders")),
	}

	g, err := BuildGraph(migrations)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	order, err := g.Linearize()
	if err != nil {
		t.Fatalf("Linearize failed: %v", err)
	}
	if len(order) != len(migrations) {
		t.Fatalf("Expected %d keys in order, got %d", len(migrations), len(order))
	}

	pos := make(map[Key]int, len(order))
	for i, key := range order {
		pos[key] = i
	}
	for _, m := range migrations {
		for _, dep := range m.Dependencies {
			if pos[dep] >= pos[m.Key()] {
				t.Errorf("%s appears before its dependency %s", m.Key(), dep)
			}
		}
	}
}

// Independent migrations linearize in lexicographic key order, so two
// runs over the same set always agree.
func TestLinearize_DeterministicTieBreak(t *testing.T) {
	migrations := []*Migration{
		mig("appB", "0001_y"),
		mig("appA", "0002_x"),
	}

	for i := 0; i < 20; i++ {
		g, err := BuildGraph(migrations)
		if err != nil {
			t.Fatalf("BuildGraph failed: %v", err)
		}
		order, err := g.Linearize()
		if err != nil {
			t.Fatalf("Linearize failed: %v", err)
		}
		if order[0] != NewKey("appA", "0002_x") || order[1] != NewKey("appB", "0001_y") {
			t.Fatalf("Run %d: order %v not lexicographic", i, order)
		}
	}
}

func TestLinearize_RunBefore(t *testing.T) {
	early := New("infra", "0001_extensions")
	early.RunBefore = []Key{NewKey("app", "0001_initial")}
	migrations := []*Migration{
		mig("app", "0001_initial"),
		early,
	}

	g, err := BuildGraph(migrations)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	order, err := g.Linearize()
	if err != nil {
		t.Fatalf("Linearize failed: %v", err)
	}

	if order[0] != NewKey("infra", "0001_extensions") {
		t.Errorf("run_before should place infra.0001_extensions first, got %v", order)
	}
}

func TestLinearize_CycleError(t *testing.T) {
	a := mig("app", "0001_a", NewKey("app", "0002_b"))
	b := mig("app", "0002_b", NewKey("app", "0001_a"))
	free := mig("app", "0003_c")

	g, err := BuildGraph([]*Migration{a, b, free})
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	_, err = g.Linearize()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected CycleError, got %T: %v", err, err)
	}
	if len(cycleErr.Keys) != 2 {
		t.Fatalf("Expected 2 keys in cycle, got %v", cycleErr.Keys)
	}
	if cycleErr.Keys[0] != NewKey("app", "0001_a") || cycleErr.Keys[1] != NewKey("app", "0002_b") {
		t.Errorf("Cycle keys %v, want both cycle members in sorted order", cycleErr.Keys)
	}
}

func TestPlan_ReturnsMigrationContent(t *testing.T) {
	first := mig("app", "0001_initial")
	second := mig("app", "0002_next", NewKey("app", "0001_initial"))

	g, err := BuildGraph([]*Migration{second, first})
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	plan, err := g.Plan()
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if plan[0] != first || plan[1] != second {
		t.Error("Plan should return the migration values in linearized order")
	}
}
