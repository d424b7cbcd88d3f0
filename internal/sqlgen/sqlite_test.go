package sqlgen

import (
	"errors"
	"testing"

	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_TypeAffinity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{schema.TypeSerial, "INTEGER"},
		{schema.TypeDateTime, "TEXT"},
		{schema.TypeDate, "TEXT"},
		{schema.TypeJSON, "TEXT"},
		{schema.TypeUUID, "TEXT"},
		{schema.TypeFloat, "REAL"},
		{schema.Decimal(10, 2), "NUMERIC"},
		{schema.TypeBool, "INTEGER"},
		{schema.TypeText, "TEXT"},
		{schema.VarChar(64), "VARCHAR(64)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqliteType(tt.in), tt.in)
	}
}

func TestSQLite_CreateModel(t *testing.T) {
	user := schema.NewModel("auth", "User")
	user.AddField(schema.Field{Name: "id", Type: schema.TypeSerial, PrimaryKey: true})
	user.AddField(schema.Field{Name: "created_at", Type: schema.TypeDateTime})

	stmts, err := SQLite{}.Translate(operation.CreateModel{Model: user})
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, "CREATE TABLE \"auth_user\" (\n"+
		"    \"id\" INTEGER PRIMARY KEY,\n"+
		"    \"created_at\" TEXT NOT NULL\n"+
		")", stmts[0])
}

func TestSQLite_DropTableHasNoCascade(t *testing.T) {
	stmts, err := SQLite{}.Translate(operation.DeleteModel{Key: schema.NewModelKey("auth", "User")})
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, `DROP TABLE "auth_user"`, stmts[0])
}

func TestSQLite_UnsupportedOperations(t *testing.T) {
	key := schema.NewModelKey("auth", "User")
	ops := []operation.Operation{
		operation.AlterField{
			ModelKey: key,
			OldField: schema.Field{Name: "age", Type: schema.TypeInteger},
			NewField: schema.Field{Name: "age", Type: schema.TypeBigInt},
		},
		operation.AddConstraint{ModelKey: key, Constraint: schema.Constraint{Name: "c", Type: schema.ConstraintCheck, Columns: []string{"age > 0"}}},
		operation.RemoveConstraint{ModelKey: key, ConstraintName: "c"},
	}

	for _, op := range ops {
		_, err := SQLite{}.Translate(op)
		var unsupported *UnsupportedError
		require.True(t, errors.As(err, &unsupported), "kind %s", op.Kind())
		assert.Equal(t, op.Kind(), unsupported.Kind)
		assert.Equal(t, "sqlite", unsupported.Dialect)
	}
}

func TestSQLite_ExtensionsAreNoOps(t *testing.T) {
	ops := []operation.Operation{
		operation.CreateExtension{Name: "pg_trgm"},
		operation.DropExtension{Name: "pg_trgm"},
		operation.CreateCollation{Name: "ci", Locale: "und"},
	}
	for _, op := range ops {
		stmts, err := SQLite{}.Translate(op)
		require.NoError(t, err, "kind %s", op.Kind())
		assert.Empty(t, stmts)
	}
}

func TestSQLite_IndexDropsUsingClause(t *testing.T) {
	idx := schema.Index{Name: "auth_user_email_idx", Columns: []string{"email"}, Type: "gin"}
	stmts, err := SQLite{}.Translate(operation.AddIndex{ModelKey: schema.NewModelKey("auth", "User"), Index: idx})
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, `CREATE INDEX "auth_user_email_idx" ON "auth_user" ("email")`, stmts[0])
}
