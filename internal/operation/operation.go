package operation

import (
	"fmt"

	"github.com/eleven-am/drift/internal/schema"
)

// Kind identifies one operation variant on the wire and in logs.
type Kind string

const (
	KindCreateModel      Kind = "create_model"
	KindDeleteModel      Kind = "delete_model"
	KindRenameModel      Kind = "rename_model"
	KindAddField         Kind = "add_field"
	KindRemoveField      Kind = "remove_field"
	KindAlterField       Kind = "alter_field"
	KindRenameField      Kind = "rename_field"
	KindAddIndex         Kind = "add_index"
	KindRemoveIndex      Kind = "remove_index"
	KindAddConstraint    Kind = "add_constraint"
	KindRemoveConstraint Kind = "remove_constraint"
	KindRunSQL           Kind = "run_sql"
	KindRunCode          Kind = "run_code"
	KindCreateExtension  Kind = "create_extension"
	KindDropExtension    Kind = "drop_extension"
	KindCreateCollation  Kind = "create_collation"
)

// Operation is one atomic schema-change primitive. The set of
// implementations is closed: every consumer dispatches with an
// exhaustive type switch ending in a panic on unknown variants, so a new
// variant breaks loudly in state application, SQL translation and
// reversal alike.
type Operation interface {
	Kind() Kind

	// ApplyState applies the operation to a clone of prior and returns
	// the resulting state. prior is never mutated.
	ApplyState(prior *schema.State) (*schema.State, error)

	// Reverse returns the inverse operation, or false when no inverse
	// can be computed from the data the operation carries.
	Reverse() (Operation, bool)

	// Describe returns a short human-readable summary for plan output.
	Describe() string
}

// CreateModel introduces a new model with its full definition.
type CreateModel struct {
	Model *schema.Model
}

func (op CreateModel) Kind() Kind { return KindCreateModel }

func (op CreateModel) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	if err := next.AddModel(op.Model.Clone()); err != nil {
		return nil, err
	}
	return next, nil
}

func (op CreateModel) Reverse() (Operation, bool) {
	return DeleteModel{Key: op.Model.Key(), Captured: op.Model.Clone()}, true
}

func (op CreateModel) Describe() string {
	return fmt.Sprintf("Create model %s", op.Model.Key())
}

// DeleteModel removes a model. Captured holds the prior definition when
// known; without it the operation is irreversible.
type DeleteModel struct {
	Key      schema.ModelKey
	Captured *schema.Model
}

func (op DeleteModel) Kind() Kind { return KindDeleteModel }

func (op DeleteModel) ApplyState(prior *schema.State) (*schema.State, error) {
	if !prior.HasModel(op.Key) {
		return nil, fmt.Errorf("%w: delete of unknown model %s", schema.ErrInvalidState, op.Key)
	}
	next := prior.Clone()
	next.RemoveModel(op.Key)
	return next, nil
}

func (op DeleteModel) Reverse() (Operation, bool) {
	if op.Captured == nil {
		return nil, false
	}
	return CreateModel{Model: op.Captured.Clone()}, true
}

func (op DeleteModel) Describe() string {
	return fmt.Sprintf("Delete model %s", op.Key)
}

// RenameModel moves a model to a new key.
type RenameModel struct {
	OldKey schema.ModelKey
	NewKey schema.ModelKey
}

func (op RenameModel) Kind() Kind { return KindRenameModel }

func (op RenameModel) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	if err := next.RenameModel(op.OldKey, op.NewKey); err != nil {
		return nil, err
	}
	return next, nil
}

func (op RenameModel) Reverse() (Operation, bool) {
	return RenameModel{OldKey: op.NewKey, NewKey: op.OldKey}, true
}

func (op RenameModel) Describe() string {
	return fmt.Sprintf("Rename model %s to %s", op.OldKey, op.NewKey)
}

// AddField appends a field to an existing model.
type AddField struct {
	ModelKey schema.ModelKey
	Field    schema.Field
}

func (op AddField) Kind() Kind { return KindAddField }

func (op AddField) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	m := next.Model(op.ModelKey)
	if m == nil {
		return nil, fmt.Errorf("%w: add field to unknown model %s", schema.ErrInvalidState, op.ModelKey)
	}
	if m.HasField(op.Field.Name) {
		return nil, fmt.Errorf("%w: field %q already exists on %s", schema.ErrInvalidState, op.Field.Name, op.ModelKey)
	}
	m.AddField(op.Field.Clone())
	return next, nil
}

func (op AddField) Reverse() (Operation, bool) {
	captured := op.Field.Clone()
	return RemoveField{ModelKey: op.ModelKey, FieldName: op.Field.Name, Captured: &captured}, true
}

func (op AddField) Describe() string {
	return fmt.Sprintf("Add field %s to %s", op.Field.Name, op.ModelKey)
}

// RemoveField drops a field. Captured holds the prior definition when
// known; without it the operation is irreversible.
type RemoveField struct {
	ModelKey  schema.ModelKey
	FieldName string
	Captured  *schema.Field
}

func (op RemoveField) Kind() Kind { return KindRemoveField }

func (op RemoveField) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	m := next.Model(op.ModelKey)
	if m == nil {
		return nil, fmt.Errorf("%w: remove field from unknown model %s", schema.ErrInvalidState, op.ModelKey)
	}
	if !m.RemoveField(op.FieldName) {
		return nil, fmt.Errorf("%w: remove of unknown field %q on %s", schema.ErrInvalidState, op.FieldName, op.ModelKey)
	}
	return next, nil
}

func (op RemoveField) Reverse() (Operation, bool) {
	if op.Captured == nil {
		return nil, false
	}
	return AddField{ModelKey: op.ModelKey, Field: op.Captured.Clone()}, true
}

func (op RemoveField) Describe() string {
	return fmt.Sprintf("Remove field %s from %s", op.FieldName, op.ModelKey)
}

// AlterField replaces a field definition in place. Both sides are
// carried so the operation reverses trivially.
type AlterField struct {
	ModelKey schema.ModelKey
	OldField schema.Field
	NewField schema.Field
}

func (op AlterField) Kind() Kind { return KindAlterField }

func (op AlterField) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	m := next.Model(op.ModelKey)
	if m == nil {
		return nil, fmt.Errorf("%w: alter field on unknown model %s", schema.ErrInvalidState, op.ModelKey)
	}
	if !m.ReplaceField(op.OldField.Name, op.NewField.Clone()) {
		return nil, fmt.Errorf("%w: alter of unknown field %q on %s", schema.ErrInvalidState, op.OldField.Name, op.ModelKey)
	}
	return next, nil
}

func (op AlterField) Reverse() (Operation, bool) {
	return AlterField{ModelKey: op.ModelKey, OldField: op.NewField, NewField: op.OldField}, true
}

func (op AlterField) Describe() string {
	return fmt.Sprintf("Alter field %s on %s", op.NewField.Name, op.ModelKey)
}

// RenameField renames a field, leaving its definition untouched.
type RenameField struct {
	ModelKey schema.ModelKey
	OldName  string
	NewName  string
}

func (op RenameField) Kind() Kind { return KindRenameField }

func (op RenameField) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	m := next.Model(op.ModelKey)
	if m == nil {
		return nil, fmt.Errorf("%w: rename field on unknown model %s", schema.ErrInvalidState, op.ModelKey)
	}
	if !m.RenameField(op.OldName, op.NewName) {
		return nil, fmt.Errorf("%w: rename of unknown field %q on %s", schema.ErrInvalidState, op.OldName, op.ModelKey)
	}
	return next, nil
}

func (op RenameField) Reverse() (Operation, bool) {
	return RenameField{ModelKey: op.ModelKey, OldName: op.NewName, NewName: op.OldName}, true
}

func (op RenameField) Describe() string {
	return fmt.Sprintf("Rename field %s to %s on %s", op.OldName, op.NewName, op.ModelKey)
}

// AddIndex attaches a table-level index to a model.
type AddIndex struct {
	ModelKey schema.ModelKey
	Index    schema.Index
}

func (op AddIndex) Kind() Kind { return KindAddIndex }

func (op AddIndex) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	m := next.Model(op.ModelKey)
	if m == nil {
		return nil, fmt.Errorf("%w: add index to unknown model %s", schema.ErrInvalidState, op.ModelKey)
	}
	if m.Index(op.Index.Name) != nil {
		return nil, fmt.Errorf("%w: index %q already exists on %s", schema.ErrInvalidState, op.Index.Name, op.ModelKey)
	}
	m.Indexes = append(m.Indexes, op.Index.Clone())
	return next, nil
}

func (op AddIndex) Reverse() (Operation, bool) {
	captured := op.Index.Clone()
	return RemoveIndex{ModelKey: op.ModelKey, IndexName: op.Index.Name, Captured: &captured}, true
}

func (op AddIndex) Describe() string {
	return fmt.Sprintf("Add index %s on %s", op.Index.Name, op.ModelKey)
}

// RemoveIndex drops a table-level index.
type RemoveIndex struct {
	ModelKey  schema.ModelKey
	IndexName string
	Captured  *schema.Index
}

func (op RemoveIndex) Kind() Kind { return KindRemoveIndex }

func (op RemoveIndex) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	m := next.Model(op.ModelKey)
	if m == nil {
		return nil, fmt.Errorf("%w: remove index from unknown model %s", schema.ErrInvalidState, op.ModelKey)
	}
	if !m.RemoveIndex(op.IndexName) {
		return nil, fmt.Errorf("%w: remove of unknown index %q on %s", schema.ErrInvalidState, op.IndexName, op.ModelKey)
	}
	return next, nil
}

func (op RemoveIndex) Reverse() (Operation, bool) {
	if op.Captured == nil {
		return nil, false
	}
	return AddIndex{ModelKey: op.ModelKey, Index: op.Captured.Clone()}, true
}

func (op RemoveIndex) Describe() string {
	return fmt.Sprintf("Remove index %s from %s", op.IndexName, op.ModelKey)
}

// AddConstraint attaches a table-level constraint to a model.
type AddConstraint struct {
	ModelKey   schema.ModelKey
	Constraint schema.Constraint
}

func (op AddConstraint) Kind() Kind { return KindAddConstraint }

func (op AddConstraint) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	m := next.Model(op.ModelKey)
	if m == nil {
		return nil, fmt.Errorf("%w: add constraint to unknown model %s", schema.ErrInvalidState, op.ModelKey)
	}
	if m.Constraint(op.Constraint.Name) != nil {
		return nil, fmt.Errorf("%w: constraint %q already exists on %s", schema.ErrInvalidState, op.Constraint.Name, op.ModelKey)
	}
	m.Constraints = append(m.Constraints, op.Constraint.Clone())
	return next, nil
}

func (op AddConstraint) Reverse() (Operation, bool) {
	captured := op.Constraint.Clone()
	return RemoveConstraint{ModelKey: op.ModelKey, ConstraintName: op.Constraint.Name, Captured: &captured}, true
}

func (op AddConstraint) Describe() string {
	return fmt.Sprintf("Add constraint %s on %s", op.Constraint.Name, op.ModelKey)
}

// RemoveConstraint drops a table-level constraint.
type RemoveConstraint struct {
	ModelKey       schema.ModelKey
	ConstraintName string
	Captured       *schema.Constraint
}

func (op RemoveConstraint) Kind() Kind { return KindRemoveConstraint }

func (op RemoveConstraint) ApplyState(prior *schema.State) (*schema.State, error) {
	next := prior.Clone()
	m := next.Model(op.ModelKey)
	if m == nil {
		return nil, fmt.Errorf("%w: remove constraint from unknown model %s", schema.ErrInvalidState, op.ModelKey)
	}
	if !m.RemoveConstraint(op.ConstraintName) {
		return nil, fmt.Errorf("%w: remove of unknown constraint %q on %s", schema.ErrInvalidState, op.ConstraintName, op.ModelKey)
	}
	return next, nil
}

func (op RemoveConstraint) Reverse() (Operation, bool) {
	if op.Captured == nil {
		return nil, false
	}
	return AddConstraint{ModelKey: op.ModelKey, Constraint: op.Captured.Clone()}, true
}

func (op RemoveConstraint) Describe() string {
	return fmt.Sprintf("Remove constraint %s from %s", op.ConstraintName, op.ModelKey)
}

// RunSQL carries raw SQL to execute forward and, optionally, backward.
// It does not touch the schema state.
type RunSQL struct {
	Forward  string
	Backward string
}

func (op RunSQL) Kind() Kind { return KindRunSQL }

func (op RunSQL) ApplyState(prior *schema.State) (*schema.State, error) {
	return prior.Clone(), nil
}

func (op RunSQL) Reverse() (Operation, bool) {
	if op.Backward == "" {
		return nil, false
	}
	return RunSQL{Forward: op.Backward, Backward: op.Forward}, true
}

func (op RunSQL) Describe() string {
	return "Run raw SQL"
}

// RunCode carries opaque handles into the code registry. The engine
// never executes the code itself; the executor resolves the identifier
// at run time.
type RunCode struct {
	ForwardID  string
	BackwardID string
}

func (op RunCode) Kind() Kind { return KindRunCode }

func (op RunCode) ApplyState(prior *schema.State) (*schema.State, error) {
	return prior.Clone(), nil
}

func (op RunCode) Reverse() (Operation, bool) {
	if op.BackwardID == "" {
		return nil, false
	}
	return RunCode{ForwardID: op.BackwardID, BackwardID: op.ForwardID}, true
}

func (op RunCode) Describe() string {
	return fmt.Sprintf("Run code %s", op.ForwardID)
}

// CreateExtension installs a database extension. Backends without
// extension support translate it to zero statements.
type CreateExtension struct {
	Name string
}

func (op CreateExtension) Kind() Kind { return KindCreateExtension }

func (op CreateExtension) ApplyState(prior *schema.State) (*schema.State, error) {
	return prior.Clone(), nil
}

func (op CreateExtension) Reverse() (Operation, bool) {
	return DropExtension{Name: op.Name}, true
}

func (op CreateExtension) Describe() string {
	return fmt.Sprintf("Create extension %s", op.Name)
}

// DropExtension removes a database extension.
type DropExtension struct {
	Name string
}

func (op DropExtension) Kind() Kind { return KindDropExtension }

func (op DropExtension) ApplyState(prior *schema.State) (*schema.State, error) {
	return prior.Clone(), nil
}

func (op DropExtension) Reverse() (Operation, bool) {
	return CreateExtension{Name: op.Name}, true
}

func (op DropExtension) Describe() string {
	return fmt.Sprintf("Drop extension %s", op.Name)
}

// CreateCollation defines a collation. Only meaningful to backends that
// support it; others translate it to zero statements.
type CreateCollation struct {
	Name     string
	Locale   string
	Provider string
}

func (op CreateCollation) Kind() Kind { return KindCreateCollation }

func (op CreateCollation) ApplyState(prior *schema.State) (*schema.State, error) {
	return prior.Clone(), nil
}

func (op CreateCollation) Reverse() (Operation, bool) {
	return RunSQL{Forward: fmt.Sprintf("DROP COLLATION IF EXISTS %q", op.Name)}, true
}

func (op CreateCollation) Describe() string {
	return fmt.Sprintf("Create collation %s", op.Name)
}

// Apply runs a sequence of operations against a state, threading the
// result of each into the next.
func Apply(state *schema.State, ops []Operation) (*schema.State, error) {
	current := state
	for _, op := range ops {
		next, err := op.ApplyState(current)
		if err != nil {
			return nil, fmt.Errorf("applying %s: %w", op.Describe(), err)
		}
		current = next
	}
	return current, nil
}
