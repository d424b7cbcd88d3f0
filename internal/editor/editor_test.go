package editor

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eleven-am/drift/internal/sqlgen"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestAtomic_ExecutesInsideTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`ALTER TABLE "auth_user" ADD COLUMN "age" INTEGER`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ed, err := NewAtomic(ctx, db, sqlgen.Postgres{})
	require.NoError(t, err)
	assert.True(t, ed.IsAtomic())

	require.NoError(t, ed.Execute(ctx, `ALTER TABLE "auth_user" ADD COLUMN "age" INTEGER`))
	require.NoError(t, ed.Finish(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomic_RollbackDiscardsWork(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE \"auth_user\" CASCADE").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	ed, err := NewAtomic(ctx, db, sqlgen.Postgres{})
	require.NoError(t, err)

	err = ed.Execute(ctx, `DROP TABLE "auth_user" CASCADE`)
	require.Error(t, err)
	require.NoError(t, ed.Rollback(ctx))

	// A second rollback after the first is a no-op.
	require.NoError(t, ed.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomic_RollbackAfterFinishIsNoOp(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()

	ed, err := NewAtomic(ctx, db, sqlgen.Postgres{})
	require.NoError(t, err)
	require.NoError(t, ed.Finish(ctx))
	require.NoError(t, ed.Rollback(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomic_DeferredStatementsRunAtFinish(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE INDEX \"a\" ON \"t\" (\"x\")").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ed, err := NewAtomic(ctx, db, sqlgen.Postgres{})
	require.NoError(t, err)

	ed.Defer(`CREATE INDEX "a" ON "t" ("x")`)
	require.NoError(t, ed.Finish(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeferred_QueuesUntilFinish(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	ed := NewDeferred(db, sqlgen.Postgres{})
	assert.False(t, ed.IsAtomic())

	// Execute only enqueues; nothing hits the database yet.
	require.NoError(t, ed.Execute(ctx, "CREATE INDEX one"))
	require.NoError(t, ed.Execute(ctx, "CREATE INDEX two"))
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectBegin()
	mock.ExpectExec("CREATE INDEX one").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX two").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, ed.Finish(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeferred_FailureRollsBackBatch(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	ed := NewDeferred(db, sqlgen.Postgres{})
	require.NoError(t, ed.Execute(ctx, "CREATE INDEX one"))
	require.NoError(t, ed.Execute(ctx, "CREATE INDEX broken"))

	mock.ExpectBegin()
	mock.ExpectExec("CREATE INDEX one").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX broken").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	require.Error(t, ed.Finish(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeferred_RollbackDiscardsQueue(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	ed := NewDeferred(db, sqlgen.Postgres{})
	require.NoError(t, ed.Execute(ctx, "CREATE INDEX one"))
	require.NoError(t, ed.Rollback(ctx))

	// Finish after rollback has nothing to run.
	require.NoError(t, ed.Finish(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeferred_EmptyFinish(t *testing.T) {
	db, mock := newMockDB(t)
	ed := NewDeferred(db, sqlgen.Postgres{})
	require.NoError(t, ed.Finish(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
