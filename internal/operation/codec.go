package operation

import (
	"encoding/json"
	"fmt"

	"github.com/eleven-am/drift/internal/schema"
)

// The wire form of an operation is a single JSON object tagged with
// "kind" and carrying that kind's fields inline, e.g.
//
//	{"kind": "add_field", "model": {"app_label": "shop", "name": "Order"}, "field": {...}}

type createModelDTO struct {
	Kind  Kind          `json:"kind"`
	Model *schema.Model `json:"model"`
}

type deleteModelDTO struct {
	Kind     Kind            `json:"kind"`
	Model    schema.ModelKey `json:"model"`
	Captured *schema.Model   `json:"captured,omitempty"`
}

type renameModelDTO struct {
	Kind   Kind            `json:"kind"`
	OldKey schema.ModelKey `json:"old"`
	NewKey schema.ModelKey `json:"new"`
}

type addFieldDTO struct {
	Kind  Kind            `json:"kind"`
	Model schema.ModelKey `json:"model"`
	Field schema.Field    `json:"field"`
}

type removeFieldDTO struct {
	Kind     Kind            `json:"kind"`
	Model    schema.ModelKey `json:"model"`
	Field    string          `json:"field"`
	Captured *schema.Field   `json:"captured,omitempty"`
}

type alterFieldDTO struct {
	Kind     Kind            `json:"kind"`
	Model    schema.ModelKey `json:"model"`
	OldField schema.Field    `json:"old_field"`
	NewField schema.Field    `json:"new_field"`
}

type renameFieldDTO struct {
	Kind    Kind            `json:"kind"`
	Model   schema.ModelKey `json:"model"`
	OldName string          `json:"old_name"`
	NewName string          `json:"new_name"`
}

type addIndexDTO struct {
	Kind  Kind            `json:"kind"`
	Model schema.ModelKey `json:"model"`
	Index schema.Index    `json:"index"`
}

type removeIndexDTO struct {
	Kind     Kind            `json:"kind"`
	Model    schema.ModelKey `json:"model"`
	Index    string          `json:"index"`
	Captured *schema.Index   `json:"captured,omitempty"`
}

type addConstraintDTO struct {
	Kind       Kind              `json:"kind"`
	Model      schema.ModelKey   `json:"model"`
	Constraint schema.Constraint `json:"constraint"`
}

type removeConstraintDTO struct {
	Kind       Kind               `json:"kind"`
	Model      schema.ModelKey    `json:"model"`
	Constraint string             `json:"constraint"`
	Captured   *schema.Constraint `json:"captured,omitempty"`
}

type runSQLDTO struct {
	Kind     Kind   `json:"kind"`
	Forward  string `json:"forward_sql"`
	Backward string `json:"backward_sql,omitempty"`
}

type runCodeDTO struct {
	Kind       Kind   `json:"kind"`
	ForwardID  string `json:"forward_fn_id"`
	BackwardID string `json:"backward_fn_id,omitempty"`
}

type extensionDTO struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

type collationDTO struct {
	Kind     Kind   `json:"kind"`
	Name     string `json:"name"`
	Locale   string `json:"locale,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Marshal encodes one operation into its kind-tagged JSON form.
func Marshal(op Operation) ([]byte, error) {
	switch o := op.(type) {
	case CreateModel:
		return json.Marshal(createModelDTO{Kind: o.Kind(), Model: o.Model})
	case DeleteModel:
		return json.Marshal(deleteModelDTO{Kind: o.Kind(), Model: o.Key, Captured: o.Captured})
	case RenameModel:
		return json.Marshal(renameModelDTO{Kind: o.Kind(), OldKey: o.OldKey, NewKey: o.NewKey})
	case AddField:
		return json.Marshal(addFieldDTO{Kind: o.Kind(), Model: o.ModelKey, Field: o.Field})
	case RemoveField:
		return json.Marshal(removeFieldDTO{Kind: o.Kind(), Model: o.ModelKey, Field: o.FieldName, Captured: o.Captured})
	case AlterField:
		return json.Marshal(alterFieldDTO{Kind: o.Kind(), Model: o.ModelKey, OldField: o.OldField, NewField: o.NewField})
	case RenameField:
		return json.Marshal(renameFieldDTO{Kind: o.Kind(), Model: o.ModelKey, OldName: o.OldName, NewName: o.NewName})
	case AddIndex:
		return json.Marshal(addIndexDTO{Kind: o.Kind(), Model: o.ModelKey, Index: o.Index})
	case RemoveIndex:
		return json.Marshal(removeIndexDTO{Kind: o.Kind(), Model: o.ModelKey, Index: o.IndexName, Captured: o.Captured})
	case AddConstraint:
		return json.Marshal(addConstraintDTO{Kind: o.Kind(), Model: o.ModelKey, Constraint: o.Constraint})
	case RemoveConstraint:
		return json.Marshal(removeConstraintDTO{Kind: o.Kind(), Model: o.ModelKey, Constraint: o.ConstraintName, Captured: o.Captured})
	case RunSQL:
		return json.Marshal(runSQLDTO{Kind: o.Kind(), Forward: o.Forward, Backward: o.Backward})
	case RunCode:
		return json.Marshal(runCodeDTO{Kind: o.Kind(), ForwardID: o.ForwardID, BackwardID: o.BackwardID})
	case CreateExtension:
		return json.Marshal(extensionDTO{Kind: o.Kind(), Name: o.Name})
	case DropExtension:
		return json.Marshal(extensionDTO{Kind: o.Kind(), Name: o.Name})
	case CreateCollation:
		return json.Marshal(collationDTO{Kind: o.Kind(), Name: o.Name, Locale: o.Locale, Provider: o.Provider})
	default:
		panic(fmt.Sprintf("operation: unhandled variant %T in Marshal", op))
	}
}

// Unmarshal decodes one kind-tagged JSON object into its operation.
func Unmarshal(data []byte) (Operation, error) {
	var tag struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to read operation kind: %w", err)
	}

	switch tag.Kind {
	case KindCreateModel:
		var dto createModelDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		if dto.Model == nil {
			return nil, fmt.Errorf("create_model operation missing model")
		}
		return CreateModel{Model: dto.Model}, nil
	case KindDeleteModel:
		var dto deleteModelDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return DeleteModel{Key: dto.Model, Captured: dto.Captured}, nil
	case KindRenameModel:
		var dto renameModelDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return RenameModel{OldKey: dto.OldKey, NewKey: dto.NewKey}, nil
	case KindAddField:
		var dto addFieldDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return AddField{ModelKey: dto.Model, Field: dto.Field}, nil
	case KindRemoveField:
		var dto removeFieldDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return RemoveField{ModelKey: dto.Model, FieldName: dto.Field, Captured: dto.Captured}, nil
	case KindAlterField:
		var dto alterFieldDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return AlterField{ModelKey: dto.Model, OldField: dto.OldField, NewField: dto.NewField}, nil
	case KindRenameField:
		var dto renameFieldDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return RenameField{ModelKey: dto.Model, OldName: dto.OldName, NewName: dto.NewName}, nil
	case KindAddIndex:
		var dto addIndexDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return AddIndex{ModelKey: dto.Model, Index: dto.Index}, nil
	case KindRemoveIndex:
		var dto removeIndexDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return RemoveIndex{ModelKey: dto.Model, IndexName: dto.Index, Captured: dto.Captured}, nil
	case KindAddConstraint:
		var dto addConstraintDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return AddConstraint{ModelKey: dto.Model, Constraint: dto.Constraint}, nil
	case KindRemoveConstraint:
		var dto removeConstraintDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return RemoveConstraint{ModelKey: dto.Model, ConstraintName: dto.Constraint, Captured: dto.Captured}, nil
	case KindRunSQL:
		var dto runSQLDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return RunSQL{Forward: dto.Forward, Backward: dto.Backward}, nil
	case KindRunCode:
		var dto runCodeDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return RunCode{ForwardID: dto.ForwardID, BackwardID: dto.BackwardID}, nil
	case KindCreateExtension:
		var dto extensionDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return CreateExtension{Name: dto.Name}, nil
	case KindDropExtension:
		var dto extensionDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return DropExtension{Name: dto.Name}, nil
	case KindCreateCollation:
		var dto collationDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, err
		}
		return CreateCollation{Name: dto.Name, Locale: dto.Locale, Provider: dto.Provider}, nil
	default:
		return nil, fmt.Errorf("unknown operation kind %q", tag.Kind)
	}
}

// MarshalList encodes an ordered operation list.
func MarshalList(ops []Operation) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(ops))
	for i, op := range ops {
		data, err := Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("failed to encode operation %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}

// UnmarshalList decodes an ordered operation list.
func UnmarshalList(raw []json.RawMessage) ([]Operation, error) {
	out := make([]Operation, len(raw))
	for i, data := range raw {
		op, err := Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode operation %d: %w", i, err)
		}
		out[i] = op
	}
	return out, nil
}
