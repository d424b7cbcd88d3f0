package sqlgen

import (
	"fmt"
	"strings"

	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/schema"
)

// Postgres translates operations into PostgreSQL DDL. Postgres runs DDL
// transactionally, so atomic migrations roll back cleanly here.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) SupportsTransactionalDDL() bool { return true }

func (p Postgres) Translate(op operation.Operation) ([]string, error) {
	switch o := op.(type) {
	case operation.CreateModel:
		return p.createModel(o.Model), nil
	case operation.DeleteModel:
		return []string{fmt.Sprintf("DROP TABLE %s CASCADE", quoteIdent(tableName(o.Key)))}, nil
	case operation.RenameModel:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
			quoteIdent(tableName(o.OldKey)), quoteIdent(tableName(o.NewKey)))}, nil
	case operation.AddField:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
			quoteIdent(tableName(o.ModelKey)), p.columnDef(o.Field))}, nil
	case operation.RemoveField:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
			quoteIdent(tableName(o.ModelKey)), quoteIdent(o.FieldName))}, nil
	case operation.AlterField:
		return p.alterField(o), nil
	case operation.RenameField:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			quoteIdent(tableName(o.ModelKey)), quoteIdent(o.OldName), quoteIdent(o.NewName))}, nil
	case operation.AddIndex:
		return []string{p.createIndex(tableName(o.ModelKey), o.Index)}, nil
	case operation.RemoveIndex:
		return []string{fmt.Sprintf("DROP INDEX IF EXISTS %s", quoteIdent(o.IndexName))}, nil
	case operation.AddConstraint:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s",
			quoteIdent(tableName(o.ModelKey)), quoteIdent(o.Constraint.Name), constraintBody(o.Constraint))}, nil
	case operation.RemoveConstraint:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
			quoteIdent(tableName(o.ModelKey)), quoteIdent(o.ConstraintName))}, nil
	case operation.RunSQL:
		return []string{o.Forward}, nil
	case operation.RunCode:
		// Resolved through the code registry at execution time, never
		// rendered as SQL.
		return nil, nil
	case operation.CreateExtension:
		return []string{fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s", quoteIdent(o.Name))}, nil
	case operation.DropExtension:
		return []string{fmt.Sprintf("DROP EXTENSION IF EXISTS %s", quoteIdent(o.Name))}, nil
	case operation.CreateCollation:
		return []string{p.createCollation(o)}, nil
	default:
		panic(fmt.Sprintf("sqlgen: unhandled variant %T in postgres Translate", op))
	}
}

func (p Postgres) createModel(m *schema.Model) []string {
	var defs []string
	for _, f := range m.Fields {
		defs = append(defs, p.columnDef(f))
	}
	for _, c := range m.Constraints {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s %s", quoteIdent(c.Name), constraintBody(c)))
	}

	create := fmt.Sprintf("CREATE TABLE %s (\n    %s\n)",
		quoteIdent(m.TableName()), strings.Join(defs, ",\n    "))

	statements := []string{create}
	for _, idx := range m.Indexes {
		statements = append(statements, p.createIndex(m.TableName(), idx))
	}
	return statements
}

func (p Postgres) columnDef(f schema.Field) string {
	var b strings.Builder
	b.WriteString(quoteIdent(f.Name))
	b.WriteString(" ")
	b.WriteString(f.Type)

	if f.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if f.Unique && !f.PrimaryKey {
		b.WriteString(" UNIQUE")
	}
	if !f.Nullable && !f.PrimaryKey {
		b.WriteString(" NOT NULL")
	}
	if f.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*f.Default)
	}
	if f.References != nil {
		ref := f.References
		b.WriteString(fmt.Sprintf(" REFERENCES %s (%s)",
			quoteIdent(tableName(ref.ModelKey())), quoteIdent(ref.Column)))
		if ref.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(string(ref.OnDelete))
		}
		if ref.OnUpdate != "" {
			b.WriteString(" ON UPDATE ")
			b.WriteString(string(ref.OnUpdate))
		}
	}
	return b.String()
}

// alterField emits one statement per changed aspect, in a fixed order:
// type, nullability, default, uniqueness.
func (p Postgres) alterField(o operation.AlterField) []string {
	table := quoteIdent(tableName(o.ModelKey))
	column := quoteIdent(o.NewField.Name)
	var statements []string

	if o.OldField.Type != o.NewField.Type {
		statements = append(statements, fmt.Sprintf(
			"ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
			table, column, o.NewField.Type, column, o.NewField.Type))
	}
	if o.OldField.Nullable != o.NewField.Nullable {
		if o.NewField.Nullable {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, column))
		} else {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, column))
		}
	}
	oldDefault := o.OldField.Default
	newDefault := o.NewField.Default
	if (oldDefault == nil) != (newDefault == nil) || (oldDefault != nil && *oldDefault != *newDefault) {
		if newDefault == nil {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, column))
		} else {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", table, column, *newDefault))
		}
	}
	if o.OldField.Unique != o.NewField.Unique {
		constraint := quoteIdent(tableName(o.ModelKey) + "_" + o.NewField.Name + "_key")
		if o.NewField.Unique {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)", table, constraint, column))
		} else {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", table, constraint))
		}
	}

	return statements
}

func (p Postgres) createIndex(table string, idx schema.Index) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString(fmt.Sprintf("INDEX %s ON %s", quoteIdent(idx.Name), quoteIdent(table)))
	if idx.Type != "" {
		b.WriteString(" USING ")
		b.WriteString(idx.Type)
	}
	b.WriteString(fmt.Sprintf(" (%s)", quoteColumns(idx.Columns)))
	if idx.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(idx.Where)
	}
	return b.String()
}

func (p Postgres) createCollation(o operation.CreateCollation) string {
	provider := o.Provider
	if provider == "" {
		provider = "icu"
	}
	return fmt.Sprintf("CREATE COLLATION %s (locale = '%s', provider = '%s')",
		quoteIdent(o.Name), o.Locale, provider)
}

// constraintBody renders the body of a table constraint, preferring an
// explicit definition over the synthesized column form.
func constraintBody(c schema.Constraint) string {
	if c.Definition != "" {
		return c.Definition
	}
	switch c.Type {
	case schema.ConstraintPrimaryKey, schema.ConstraintUnique:
		return fmt.Sprintf("%s (%s)", c.Type, quoteColumns(c.Columns))
	case schema.ConstraintCheck:
		return fmt.Sprintf("CHECK (%s)", strings.Join(c.Columns, ", "))
	default:
		return fmt.Sprintf("%s (%s)", c.Type, quoteColumns(c.Columns))
	}
}
