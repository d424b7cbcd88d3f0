package schema

import "fmt"

// Semantic field type tags. Parameterized types are rendered into the
// tag by the constructors below so that type equality is plain string
// equality.
const (
	TypeInteger  = "INTEGER"
	TypeBigInt   = "BIGINT"
	TypeSmallInt = "SMALLINT"
	TypeSerial   = "SERIAL"
	TypeText     = "TEXT"
	TypeBool     = "BOOLEAN"
	TypeDateTime = "TIMESTAMPTZ"
	TypeDate     = "DATE"
	TypeFloat    = "DOUBLE PRECISION"
	TypeUUID     = "UUID"
	TypeJSON     = "JSONB"
)

// VarChar returns the type tag for a length-limited string column.
func VarChar(n int) string {
	return fmt.Sprintf("VARCHAR(%d)", n)
}

// Decimal returns the type tag for a fixed-precision numeric column.
func Decimal(precision, scale int) string {
	return fmt.Sprintf("DECIMAL(%d,%d)", precision, scale)
}

// FKAction is a referential action on a foreign key.
type FKAction string

const (
	Cascade    FKAction = "CASCADE"
	Restrict   FKAction = "RESTRICT"
	SetNull    FKAction = "SET NULL"
	SetDefault FKAction = "SET DEFAULT"
	NoAction   FKAction = "NO ACTION"
)

// Reference is a foreign key target. The referenced model must exist in
// the same state; forward references are rejected by State.Validate.
type Reference struct {
	App      string   `json:"app_label"`
	Model    string   `json:"model"`
	Column   string   `json:"column"`
	OnDelete FKAction `json:"on_delete,omitempty"`
	OnUpdate FKAction `json:"on_update,omitempty"`
}

func (r Reference) ModelKey() ModelKey {
	return NewModelKey(r.App, r.Model)
}

func (r Reference) Equal(other Reference) bool {
	return r == other
}

// Field is one column definition within a model.
type Field struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Nullable   bool       `json:"nullable,omitempty"`
	PrimaryKey bool       `json:"primary_key,omitempty"`
	Unique     bool       `json:"unique,omitempty"`
	Default    *string    `json:"default,omitempty"`
	References *Reference `json:"references,omitempty"`
}

func (f Field) Clone() Field {
	out := f
	if f.Default != nil {
		v := *f.Default
		out.Default = &v
	}
	if f.References != nil {
		ref := *f.References
		out.References = &ref
	}
	return out
}

// Equal reports whether two field definitions are identical in every
// schema-relevant aspect, name included.
func (f Field) Equal(other Field) bool {
	if f.Name != other.Name || f.Type != other.Type ||
		f.Nullable != other.Nullable || f.PrimaryKey != other.PrimaryKey ||
		f.Unique != other.Unique {
		return false
	}
	if (f.Default == nil) != (other.Default == nil) {
		return false
	}
	if f.Default != nil && *f.Default != *other.Default {
		return false
	}
	if (f.References == nil) != (other.References == nil) {
		return false
	}
	if f.References != nil && !f.References.Equal(*other.References) {
		return false
	}
	return true
}

// SameShape reports whether two fields agree on everything except their
// name. Rename detection keys on this.
func (f Field) SameShape(other Field) bool {
	a, b := f, other
	a.Name, b.Name = "", ""
	return a.Equal(b)
}
