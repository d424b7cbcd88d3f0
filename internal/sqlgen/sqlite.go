package sqlgen

import (
	"fmt"
	"strings"

	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/schema"
)

// SQLite translates operations into SQLite DDL. SQLite auto-commits
// most DDL semantics fine inside transactions, but its ALTER TABLE is
// limited: column alteration and table-level constraint changes require
// full table recreation and are reported as unsupported rather than
// emitting invalid SQL.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) SupportsTransactionalDDL() bool { return true }

func (s SQLite) Translate(op operation.Operation) ([]string, error) {
	switch o := op.(type) {
	case operation.CreateModel:
		return s.createModel(o.Model), nil
	case operation.DeleteModel:
		return []string{fmt.Sprintf("DROP TABLE %s", quoteIdent(tableName(o.Key)))}, nil
	case operation.RenameModel:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
			quoteIdent(tableName(o.OldKey)), quoteIdent(tableName(o.NewKey)))}, nil
	case operation.AddField:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
			quoteIdent(tableName(o.ModelKey)), s.columnDef(o.Field))}, nil
	case operation.RemoveField:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
			quoteIdent(tableName(o.ModelKey)), quoteIdent(o.FieldName))}, nil
	case operation.AlterField:
		return nil, &UnsupportedError{Kind: op.Kind(), Dialect: s.Name()}
	case operation.RenameField:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			quoteIdent(tableName(o.ModelKey)), quoteIdent(o.OldName), quoteIdent(o.NewName))}, nil
	case operation.AddIndex:
		return []string{s.createIndex(tableName(o.ModelKey), o.Index)}, nil
	case operation.RemoveIndex:
		return []string{fmt.Sprintf("DROP INDEX IF EXISTS %s", quoteIdent(o.IndexName))}, nil
	case operation.AddConstraint, operation.RemoveConstraint:
		return nil, &UnsupportedError{Kind: op.Kind(), Dialect: s.Name()}
	case operation.RunSQL:
		return []string{o.Forward}, nil
	case operation.RunCode:
		return nil, nil
	case operation.CreateExtension, operation.DropExtension, operation.CreateCollation:
		// Extension operations are postgres-specific; other backends
		// treat them as a successful no-op.
		return nil, nil
	default:
		panic(fmt.Sprintf("sqlgen: unhandled variant %T in sqlite Translate", op))
	}
}

func (s SQLite) createModel(m *schema.Model) []string {
	var defs []string
	for _, f := range m.Fields {
		defs = append(defs, s.columnDef(f))
	}
	for _, c := range m.Constraints {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s %s", quoteIdent(c.Name), constraintBody(c)))
	}

	create := fmt.Sprintf("CREATE TABLE %s (\n    %s\n)",
		quoteIdent(m.TableName()), strings.Join(defs, ",\n    "))

	statements := []string{create}
	for _, idx := range m.Indexes {
		statements = append(statements, s.createIndex(m.TableName(), idx))
	}
	return statements
}

func (s SQLite) columnDef(f schema.Field) string {
	var b strings.Builder
	b.WriteString(quoteIdent(f.Name))
	b.WriteString(" ")
	b.WriteString(sqliteType(f.Type))

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

func (s SQLite) createIndex(table string, idx schema.Index) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	// SQLite has no USING clause; the index type tag is dropped.
	b.WriteString(fmt.Sprintf("INDEX %s ON %s (%s)",
		quoteIdent(idx.Name), quoteIdent(table), quoteColumns(idx.Columns)))
	if idx.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(idx.Where)
	}
	return b.String()
}

// sqliteType maps the semantic type tags onto SQLite's affinity names.
func sqliteType(t string) string {
	base := strings.ToUpper(strings.Split(t, "(")[0])
	switch base {
	case "SERIAL":
		return "INTEGER"
	case "TIMESTAMPTZ", "TIMESTAMP", "DATE":
		return "TEXT"
	case "JSONB":
		return "TEXT"
	case "UUID":
		return "TEXT"
	case "DOUBLE PRECISION":
		return "REAL"
	case "DECIMAL":
		return "NUMERIC"
	case "BOOLEAN":
		return "INTEGER"
	default:
		return t
	}
}
