package editor

import (
	"context"
	"fmt"

	"github.com/eleven-am/drift/internal/logger"
	"github.com/eleven-am/drift/internal/sqlgen"
	"github.com/jmoiron/sqlx"
)

// Editor executes translated SQL under one of two disciplines. Atomic
// editors run statements immediately inside an open transaction;
// Deferred editors queue statements and run the whole batch on Finish.
type Editor interface {
	// Execute runs (or enqueues, for Deferred) one statement.
	Execute(ctx context.Context, stmt string) error

	// Defer enqueues a statement to run at Finish, regardless of
	// discipline.
	Defer(stmt string)

	// Finish commits the transaction or flushes the queue.
	Finish(ctx context.Context) error

	// Rollback aborts the transaction or discards the queue. Safe to
	// call after Finish; it is then a no-op.
	Rollback(ctx context.Context) error

	// IsAtomic reports whether the editor's work can still be rolled
	// back as a unit.
	IsAtomic() bool

	Dialect() sqlgen.Dialect

	// Conn returns the execution target for statements issued outside
	// the editor, such as history records that must commit with the
	// schema changes.
	Conn() sqlx.ExtContext
}

// Atomic executes every statement immediately inside one transaction
// opened at construction. On backends without transactional DDL it
// degrades to immediate execution on the bare connection and reports
// IsAtomic false so callers can adjust their recovery expectations.
type Atomic struct {
	db       *sqlx.DB
	tx       *sqlx.Tx
	dialect  sqlgen.Dialect
	deferred []string
	done     bool
	log      logger.Logger
}

// NewAtomic opens the editor's transaction when the dialect supports
// transactional DDL.
func NewAtomic(ctx context.Context, db *sqlx.DB, dialect sqlgen.Dialect) (*Atomic, error) {
	e := &Atomic{db: db, dialect: dialect, log: logger.SQL()}
	if dialect.SupportsTransactionalDDL() {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		e.tx = tx
	}
	return e, nil
}

func (e *Atomic) Execute(ctx context.Context, stmt string) error {
	e.log.Debug("executing statement", "sql", stmt)
	_, err := e.Conn().ExecContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to execute %q: %w", stmt, err)
	}
	return nil
}

func (e *Atomic) Defer(stmt string) {
	e.deferred = append(e.deferred, stmt)
}

func (e *Atomic) Finish(ctx context.Context) error {
	for _, stmt := range e.deferred {
		if err := e.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	e.deferred = nil
	e.done = true
	if e.tx != nil {
		if err := e.tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
	}
	return nil
}

func (e *Atomic) Rollback(context.Context) error {
	e.deferred = nil
	if e.done || e.tx == nil {
		return nil
	}
	e.done = true
	if err := e.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

func (e *Atomic) IsAtomic() bool {
	return e.tx != nil
}

func (e *Atomic) Dialect() sqlgen.Dialect {
	return e.dialect
}

func (e *Atomic) Conn() sqlx.ExtContext {
	if e.tx != nil {
		return e.tx
	}
	return e.db
}

// Deferred enqueues everything and executes the queue on Finish, inside
// one transaction when the backend allows it. Rollback before Finish
// discards the queue without touching the database.
type Deferred struct {
	db      *sqlx.DB
	dialect sqlgen.Dialect
	queue   []string
	log     logger.Logger
}

func NewDeferred(db *sqlx.DB, dialect sqlgen.Dialect) *Deferred {
	return &Deferred{db: db, dialect: dialect, log: logger.SQL()}
}

func (e *Deferred) Execute(_ context.Context, stmt string) error {
	e.queue = append(e.queue, stmt)
	return nil
}

func (e *Deferred) Defer(stmt string) {
	e.queue = append(e.queue, stmt)
}

func (e *Deferred) Finish(ctx context.Context) error {
	queue := e.queue
	e.queue = nil
	if len(queue) == 0 {
		return nil
	}

	if e.dialect.SupportsTransactionalDDL() {
		tx, err := e.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		for _, stmt := range queue {
			e.log.Debug("executing deferred statement", "sql", stmt)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to execute %q: %w", stmt, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		return nil
	}

	for _, stmt := range queue {
		e.log.Debug("executing deferred statement", "sql", stmt)
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}

func (e *Deferred) Rollback(context.Context) error {
	e.queue = nil
	return nil
}

func (e *Deferred) IsAtomic() bool {
	return false
}

func (e *Deferred) Dialect() sqlgen.Dialect {
	return e.dialect
}

func (e *Deferred) Conn() sqlx.ExtContext {
	return e.db
}
