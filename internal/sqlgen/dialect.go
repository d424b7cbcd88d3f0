package sqlgen

import (
	"fmt"
	"strings"

	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/schema"
)

// Dialect translates one operation into an ordered list of SQL
// statements for a specific backend. Translation is pure: it touches no
// connection, so a plan can be previewed without an editor.
type Dialect interface {
	Name() string

	// SupportsTransactionalDDL reports whether DDL can run inside a
	// transaction and be rolled back on this backend.
	SupportsTransactionalDDL() bool

	// Translate maps one operation to zero or more statements. An
	// operation kind the dialect cannot express returns an
	// UnsupportedError; extension operations on backends without
	// extension support return zero statements instead.
	Translate(op operation.Operation) ([]string, error)
}

// UnsupportedError marks an operation kind a dialect cannot express.
type UnsupportedError struct {
	Kind    operation.Kind
	Dialect string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("operation %s is not supported by the %s dialect", e.Kind, e.Dialect)
}

// TranslateAll maps an operation list through a dialect, flattening the
// per-operation statement lists in order.
func TranslateAll(d Dialect, ops []operation.Operation) ([]string, error) {
	var statements []string
	for _, op := range ops {
		stmts, err := d.Translate(op)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmts...)
	}
	return statements, nil
}

// ByName returns the dialect registered under name.
func ByName(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableName derives the physical table name for a model key.
func tableName(key schema.ModelKey) string {
	return key.App + "_" + strings.ToLower(key.Name)
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
