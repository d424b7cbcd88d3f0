package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// snapshotDoc is the on-disk form of a schema state. Models are stored
// as a flat list; the map keying is rebuilt on load.
type snapshotDoc struct {
	Models []*Model `json:"models"`
}

// LoadSnapshot reads a schema state from a JSON file. The result is
// validated, so a loaded state always satisfies the same invariants as
// one built through AddModel.
func LoadSnapshot(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

func ParseSnapshot(data []byte) (*State, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema snapshot: %w", err)
	}

	state := NewState()
	for _, m := range doc.Models {
		if err := state.AddModel(m); err != nil {
			return nil, err
		}
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveSnapshot writes the state as indented JSON with models in sorted
// key order, so snapshots diff cleanly under version control.
func SaveSnapshot(state *State, path string) error {
	doc := snapshotDoc{}
	for _, key := range state.SortedKeys() {
		doc.Models = append(doc.Models, state.Model(key))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema snapshot: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write schema snapshot: %w", err)
	}
	return nil
}
