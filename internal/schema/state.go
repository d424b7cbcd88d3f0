package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ModelKey uniquely identifies a model within a state.
type ModelKey struct {
	App  string `json:"app_label"`
	Name string `json:"name"`
}

func NewModelKey(app, name string) ModelKey {
	return ModelKey{App: app, Name: name}
}

func (k ModelKey) String() string {
	return k.App + "." + k.Name
}

// Less orders keys lexicographically by (app, name). Used everywhere a
// deterministic iteration or tie-break order is required.
func (k ModelKey) Less(other ModelKey) bool {
	if k.App != other.App {
		return k.App < other.App
	}
	return k.Name < other.Name
}

// State is an in-memory snapshot of a project's models at one point in
// time. It is built either empty or by replaying migration operations in
// dependency order, never by introspecting a live database.
type State struct {
	models map[ModelKey]*Model
}

func NewState() *State {
	return &State{models: make(map[ModelKey]*Model)}
}

// AddModel inserts a model into the state. Duplicate keys are rejected.
func (s *State) AddModel(m *Model) error {
	key := m.Key()
	if _, exists := s.models[key]; exists {
		return fmt.Errorf("%w: duplicate model %s", ErrInvalidState, key)
	}
	s.models[key] = m
	return nil
}

// Model returns the model for key, or nil if absent.
func (s *State) Model(key ModelKey) *Model {
	return s.models[key]
}

func (s *State) HasModel(key ModelKey) bool {
	_, ok := s.models[key]
	return ok
}

func (s *State) RemoveModel(key ModelKey) {
	delete(s.models, key)
}

// RenameModel moves a model to a new key, keeping its contents. Foreign
// keys elsewhere in the state that point at the old key are remapped so
// no reference dangles.
func (s *State) RenameModel(old, new ModelKey) error {
	m, ok := s.models[old]
	if !ok {
		return fmt.Errorf("%w: rename of unknown model %s", ErrInvalidState, old)
	}
	if _, exists := s.models[new]; exists {
		return fmt.Errorf("%w: rename target %s already exists", ErrInvalidState, new)
	}
	delete(s.models, old)
	m.App = new.App
	m.Name = new.Name
	s.models[new] = m

	for _, other := range s.models {
		for i := range other.Fields {
			ref := other.Fields[i].References
			if ref != nil && ref.ModelKey() == old {
				ref.App = new.App
				ref.Model = new.Name
			}
		}
	}
	return nil
}

func (s *State) Len() int {
	return len(s.models)
}

// SortedKeys returns all model keys in lexicographic order. Map iteration
// order must never leak into detection output, so every consumer that
// walks the state goes through this.
func (s *State) SortedKeys() []ModelKey {
	keys := make([]ModelKey, 0, len(s.models))
	for key := range s.models {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Clone returns a deep copy of the state. Operations apply against a
// clone so that the prior state stays untouched.
func (s *State) Clone() *State {
	out := NewState()
	for key, m := range s.models {
		out.models[key] = m.Clone()
	}
	return out
}

// Validate checks the structural invariants of the state: unique field
// names per model, row identity, and FK targets resolving within the
// state.
func (s *State) Validate() error {
	for _, key := range s.SortedKeys() {
		m := s.models[key]
		if err := m.validate(); err != nil {
			return err
		}
		for _, f := range m.Fields {
			if f.References == nil {
				continue
			}
			target := NewModelKey(f.References.App, f.References.Model)
			if !s.HasModel(target) {
				return fmt.Errorf("%w: field %s.%s references unknown model %s",
					ErrInvalidState, key, f.Name, target)
			}
		}
	}
	return nil
}

// Model represents one table: an ordered field list plus table-level
// indexes, constraints and options.
type Model struct {
	App         string            `json:"app_label"`
	Name        string            `json:"name"`
	Fields      []Field           `json:"fields"`
	Indexes     []Index           `json:"indexes,omitempty"`
	Constraints []Constraint      `json:"constraints,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
}

func NewModel(app, name string) *Model {
	return &Model{App: app, Name: name}
}

func (m *Model) Key() ModelKey {
	return NewModelKey(m.App, m.Name)
}

// TableName derives the physical table name: app label and lowercased
// model name joined by an underscore.
func (m *Model) TableName() string {
	return m.App + "_" + strings.ToLower(m.Name)
}

func (m *Model) AddField(f Field) {
	m.Fields = append(m.Fields, f)
}

func (m *Model) Field(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

func (m *Model) HasField(name string) bool {
	return m.Field(name) != nil
}

// FieldIndex returns the position of a field in the ordered field list,
// or -1 if absent.
func (m *Model) FieldIndex(name string) int {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

func (m *Model) RemoveField(name string) bool {
	idx := m.FieldIndex(name)
	if idx < 0 {
		return false
	}
	m.Fields = append(m.Fields[:idx], m.Fields[idx+1:]...)
	return true
}

// ReplaceField swaps the definition of an existing field in place,
// preserving its position.
func (m *Model) ReplaceField(name string, f Field) bool {
	idx := m.FieldIndex(name)
	if idx < 0 {
		return false
	}
	m.Fields[idx] = f
	return true
}

func (m *Model) RenameField(oldName, newName string) bool {
	idx := m.FieldIndex(oldName)
	if idx < 0 {
		return false
	}
	m.Fields[idx].Name = newName
	return true
}

func (m *Model) Index(name string) *Index {
	for i := range m.Indexes {
		if m.Indexes[i].Name == name {
			return &m.Indexes[i]
		}
	}
	return nil
}

func (m *Model) RemoveIndex(name string) bool {
	for i := range m.Indexes {
		if m.Indexes[i].Name == name {
			m.Indexes = append(m.Indexes[:i], m.Indexes[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Model) Constraint(name string) *Constraint {
	for i := range m.Constraints {
		if m.Constraints[i].Name == name {
			return &m.Constraints[i]
		}
	}
	return nil
}

func (m *Model) RemoveConstraint(name string) bool {
	for i := range m.Constraints {
		if m.Constraints[i].Name == name {
			m.Constraints = append(m.Constraints[:i], m.Constraints[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Model) Clone() *Model {
	out := &Model{App: m.App, Name: m.Name}
	out.Fields = make([]Field, len(m.Fields))
	for i, f := range m.Fields {
		out.Fields[i] = f.Clone()
	}
	if m.Indexes != nil {
		out.Indexes = make([]Index, len(m.Indexes))
		for i, idx := range m.Indexes {
			out.Indexes[i] = idx.Clone()
		}
	}
	if m.Constraints != nil {
		out.Constraints = make([]Constraint, len(m.Constraints))
		for i, c := range m.Constraints {
			out.Constraints[i] = c.Clone()
		}
	}
	if m.Options != nil {
		out.Options = make(map[string]string, len(m.Options))
		for k, v := range m.Options {
			out.Options[k] = v
		}
	}
	return out
}

func (m *Model) validate() error {
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate field %q on model %s", ErrInvalidState, f.Name, m.Key())
		}
		seen[f.Name] = true
	}
	if len(m.Fields) == 0 && !m.hasCompositePrimaryKey() {
		return fmt.Errorf("%w: model %s has no fields and no composite primary key", ErrInvalidState, m.Key())
	}
	return nil
}

func (m *Model) hasCompositePrimaryKey() bool {
	for _, c := range m.Constraints {
		if c.Type == ConstraintPrimaryKey {
			return true
		}
	}
	return false
}

// Index is a table-level index definition.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
	Type    string   `json:"type,omitempty"`  // e.g. "btree", "gin", "hash"
	Where   string   `json:"where,omitempty"` // partial index predicate
}

func (i Index) Clone() Index {
	out := i
	out.Columns = append([]string(nil), i.Columns...)
	return out
}

func (i Index) Equal(other Index) bool {
	if i.Name != other.Name || i.Unique != other.Unique || i.Type != other.Type || i.Where != other.Where {
		return false
	}
	if len(i.Columns) != len(other.Columns) {
		return false
	}
	for n := range i.Columns {
		if i.Columns[n] != other.Columns[n] {
			return false
		}
	}
	return true
}

// Constraint types recognized at the table level. A composite primary key
// is carried as a ConstraintPrimaryKey spanning multiple columns.
const (
	ConstraintPrimaryKey = "PRIMARY KEY"
	ConstraintUnique     = "UNIQUE"
	ConstraintCheck      = "CHECK"
	ConstraintForeignKey = "FOREIGN KEY"
)

// Constraint is a table-level constraint definition.
type Constraint struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Columns    []string `json:"columns,omitempty"`
	Definition string   `json:"definition,omitempty"`
}

func (c Constraint) Clone() Constraint {
	out := c
	out.Columns = append([]string(nil), c.Columns...)
	return out
}

func (c Constraint) Equal(other Constraint) bool {
	if c.Name != other.Name || c.Type != other.Type || c.Definition != other.Definition {
		return false
	}
	if len(c.Columns) != len(other.Columns) {
		return false
	}
	for i := range c.Columns {
		if c.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}
