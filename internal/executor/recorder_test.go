package executor

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eleven-am/drift/internal/migration"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_DefaultTable(t *testing.T) {
	db, _ := newExecDB(t)
	assert.Equal(t, DefaultHistoryTable, NewRecorder(db, "").Table())
	assert.Equal(t, "custom_history", NewRecorder(db, "custom_history").Table())
}

func TestRecorder_Applied(t *testing.T) {
	db, mock := newExecDB(t)
	rec := NewRecorder(db, "")

	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(historySelect).WillReturnRows(
		sqlmock.NewRows([]string{"app_label", "name", "applied_at"}).
			AddRow("auth", "0001_initial", when).
			AddRow("shop", "0001_initial", when))

	applied, err := rec.Applied(context.Background())
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, when, applied[migration.NewKey("auth", "0001_initial")])
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Postgres connections get dollar placeholders; everything else keeps
// question marks.
func TestRecorder_PostgresPlaceholders(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	db := sqlx.NewDb(raw, "postgres")
	rec := NewRecorder(db, "")

	mock.ExpectExec("INSERT INTO drift_migrations (app_label,name,applied_at) VALUES ($1,$2,$3)").
		WithArgs("auth", "0001_initial", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = rec.RecordApplied(context.Background(), db, migration.NewKey("auth", "0001_initial"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_RecordUnapplied(t *testing.T) {
	db, mock := newExecDB(t)
	rec := NewRecorder(db, "")

	mock.ExpectExec(historyDelete).
		WithArgs("auth", "0001_initial").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := rec.RecordUnapplied(context.Background(), db, migration.NewKey("auth", "0001_initial"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalLock(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()

	require.NoError(t, lock.Acquire(ctx))
	assert.ErrorIs(t, lock.Acquire(ctx), ErrAlreadyRunning)

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Acquire(ctx))
	require.NoError(t, lock.Release(ctx))
}

func TestAdvisoryLock(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	db := sqlx.NewDb(raw, "postgres")
	lock := NewAdvisoryLock(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT pg_try_advisory_lock($1)").
		WithArgs(advisoryLockKey).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	require.NoError(t, lock.Acquire(ctx))

	mock.ExpectQuery("SELECT pg_try_advisory_lock($1)").
		WithArgs(advisoryLockKey).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))
	assert.ErrorIs(t, lock.Acquire(ctx), ErrAlreadyRunning)

	mock.ExpectQuery("SELECT pg_advisory_unlock($1)").
		WithArgs(advisoryLockKey).
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(true))
	require.NoError(t, lock.Release(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}
