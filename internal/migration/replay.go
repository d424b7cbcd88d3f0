package migration

import (
	"fmt"

	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/schema"
)

// ReplayState reconstructs the schema state a migration set produces by
// applying every operation in graph order, starting from an empty
// state. This is how the engine learns "what the database looks like"
// without ever introspecting it.
func ReplayState(migrations []*Migration) (*schema.State, error) {
	graph, err := BuildGraph(migrations)
	if err != nil {
		return nil, err
	}
	plan, err := graph.Plan()
	if err != nil {
		return nil, err
	}

	state := schema.NewState()
	for _, m := range plan {
		next, err := operation.Apply(state, m.Operations)
		if err != nil {
			return nil, fmt.Errorf("replaying migration %s: %w", m.Key(), err)
		}
		state = next
	}
	return state, nil
}

// ReplayStateThrough reconstructs state up to and including the target
// migration, honoring graph order.
func ReplayStateThrough(migrations []*Migration, target Key) (*schema.State, error) {
	graph, err := BuildGraph(migrations)
	if err != nil {
		return nil, err
	}
	plan, err := graph.Plan()
	if err != nil {
		return nil, err
	}

	state := schema.NewState()
	for _, m := range plan {
		next, err := operation.Apply(state, m.Operations)
		if err != nil {
			return nil, fmt.Errorf("replaying migration %s: %w", m.Key(), err)
		}
		state = next
		if m.Key() == target {
			return state, nil
		}
	}
	return nil, fmt.Errorf("migration %s not found in plan", target)
}
