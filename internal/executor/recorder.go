package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/eleven-am/drift/internal/migration"
	"github.com/jmoiron/sqlx"
)

// DefaultHistoryTable is the migration-history table name unless the
// configuration overrides it.
const DefaultHistoryTable = "drift_migrations"

// Record is one row of the migration-history table.
type Record struct {
	App       string    `db:"app_label"`
	Name      string    `db:"name"`
	AppliedAt time.Time `db:"applied_at"`
}

func (r Record) Key() migration.Key {
	return migration.NewKey(r.App, r.Name)
}

// Recorder persists which migrations have been applied. Writes happen
// on the caller-supplied connection so a record can commit in the same
// transaction as the schema changes it describes.
type Recorder struct {
	db    *sqlx.DB
	table string
}

func NewRecorder(db *sqlx.DB, table string) *Recorder {
	if table == "" {
		table = DefaultHistoryTable
	}
	return &Recorder{db: db, table: table}
}

func (r *Recorder) Table() string {
	return r.table
}

// EnsureTable creates the history table on first use.
func (r *Recorder) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    app_label TEXT NOT NULL,
    name TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL,
    PRIMARY KEY (app_label, name)
)`, r.table)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create migration history table: %w", err)
	}
	return nil
}

// Applied returns every recorded migration keyed for quick lookup.
func (r *Recorder) Applied(ctx context.Context) (map[migration.Key]time.Time, error) {
	query, args, err := squirrel.Select("app_label", "name", "applied_at").
		From(r.table).
		PlaceholderFormat(r.placeholder()).
		ToSql()
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := sqlx.SelectContext(ctx, r.db, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to read migration history: %w", err)
	}

	applied := make(map[migration.Key]time.Time, len(records))
	for _, rec := range records {
		applied[rec.Key()] = rec.AppliedAt
	}
	return applied, nil
}

// RecordApplied inserts a history row on conn.
func (r *Recorder) RecordApplied(ctx context.Context, conn sqlx.ExtContext, key migration.Key) error {
	query, args, err := squirrel.Insert(r.table).
		Columns("app_label", "name", "applied_at").
		Values(key.App, key.Name, time.Now().UTC()).
		PlaceholderFormat(r.placeholder()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", key, err)
	}
	return nil
}

// RecordUnapplied deletes a history row on conn.
func (r *Recorder) RecordUnapplied(ctx context.Context, conn sqlx.ExtContext, key migration.Key) error {
	query, args, err := squirrel.Delete(r.table).
		Where(squirrel.Eq{"app_label": key.App, "name": key.Name}).
		PlaceholderFormat(r.placeholder()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete migration record %s: %w", key, err)
	}
	return nil
}

func (r *Recorder) placeholder() squirrel.PlaceholderFormat {
	if r.db.DriverName() == "postgres" {
		return squirrel.Dollar
	}
	return squirrel.Question
}
