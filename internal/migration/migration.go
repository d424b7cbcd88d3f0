package migration

import (
	"encoding/json"
	"fmt"

	"github.com/eleven-am/drift/internal/operation"
)

// Key identifies one migration globally.
type Key struct {
	App  string `json:"app_label"`
	Name string `json:"name"`
}

func NewKey(app, name string) Key {
	return Key{App: app, Name: name}
}

func (k Key) String() string {
	return k.App + "." + k.Name
}

func (k Key) Less(other Key) bool {
	if k.App != other.App {
		return k.App < other.App
	}
	return k.Name < other.Name
}

// Migration is a named, ordered bundle of operations plus dependency
// metadata. Operations execute in exactly the authored order.
type Migration struct {
	App          string
	Name         string
	Dependencies []Key
	RunBefore    []Key
	Operations   []operation.Operation

	// Atomic controls whether the migration runs inside one
	// transaction. Migrations opt out when they contain statements the
	// backend cannot run transactionally.
	Atomic bool
}

func New(app, name string) *Migration {
	return &Migration{App: app, Name: name, Atomic: true}
}

func (m *Migration) Key() Key {
	return NewKey(m.App, m.Name)
}

func (m *Migration) AddOperation(op operation.Operation) *Migration {
	m.Operations = append(m.Operations, op)
	return m
}

func (m *Migration) AddDependency(key Key) *Migration {
	m.Dependencies = append(m.Dependencies, key)
	return m
}

// ReverseOperations returns the inverse of the operation list in
// reverse order, or the first operation that cannot be reversed.
func (m *Migration) ReverseOperations() ([]operation.Operation, operation.Operation) {
	out := make([]operation.Operation, 0, len(m.Operations))
	for i := len(m.Operations) - 1; i >= 0; i-- {
		rev, ok := m.Operations[i].Reverse()
		if !ok {
			return nil, m.Operations[i]
		}
		out = append(out, rev)
	}
	return out, nil
}

// migrationDTO is the canonical on-disk JSON form: one object per file,
// dependencies as [app_label, name] pairs, operations kind-tagged.
type migrationDTO struct {
	App          string            `json:"app_label"`
	Name         string            `json:"name"`
	Dependencies [][2]string       `json:"dependencies"`
	RunBefore    [][2]string       `json:"run_before,omitempty"`
	Atomic       *bool             `json:"atomic,omitempty"`
	Operations   []json.RawMessage `json:"operations"`
}

// MarshalJSON encodes the migration into its file format.
func (m *Migration) MarshalJSON() ([]byte, error) {
	ops, err := operation.MarshalList(m.Operations)
	if err != nil {
		return nil, err
	}
	dto := migrationDTO{
		App:          m.App,
		Name:         m.Name,
		Dependencies: keysToPairs(m.Dependencies),
		RunBefore:    keysToPairs(m.RunBefore),
		Operations:   ops,
	}
	if dto.Dependencies == nil {
		dto.Dependencies = [][2]string{}
	}
	if !m.Atomic {
		atomic := false
		dto.Atomic = &atomic
	}
	return json.MarshalIndent(dto, "", "  ")
}

// UnmarshalJSON decodes a migration from its file format.
func (m *Migration) UnmarshalJSON(data []byte) error {
	var dto migrationDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	if dto.App == "" || dto.Name == "" {
		return fmt.Errorf("migration is missing app_label or name")
	}
	ops, err := operation.UnmarshalList(dto.Operations)
	if err != nil {
		return fmt.Errorf("migration %s.%s: %w", dto.App, dto.Name, err)
	}
	m.App = dto.App
	m.Name = dto.Name
	m.Dependencies = pairsToKeys(dto.Dependencies)
	m.RunBefore = pairsToKeys(dto.RunBefore)
	m.Operations = ops
	m.Atomic = dto.Atomic == nil || *dto.Atomic
	return nil
}

func keysToPairs(keys []Key) [][2]string {
	if keys == nil {
		return nil
	}
	out := make([][2]string, len(keys))
	for i, k := range keys {
		out[i] = [2]string{k.App, k.Name}
	}
	return out
}

func pairsToKeys(pairs [][2]string) []Key {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]Key, len(pairs))
	for i, p := range pairs {
		out[i] = NewKey(p[0], p[1])
	}
	return out
}
