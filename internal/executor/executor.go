package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/drift/internal/editor"
	"github.com/eleven-am/drift/internal/logger"
	"github.com/eleven-am/drift/internal/migration"
	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/sqlgen"
	"github.com/jmoiron/sqlx"
)

// Options tune one executor run.
type Options struct {
	// Target bounds the run: forward runs stop after applying Target,
	// backward runs unapply everything after Target (or everything, if
	// Target is nil).
	Target *migration.Key

	// Fake writes or deletes history records without running any
	// schema SQL.
	Fake bool
}

// Report summarizes one run.
type Report struct {
	Applied   []migration.Key
	Unapplied []migration.Key
	Skipped   []migration.Key
}

// Executor walks a graph-ordered migration plan, applies or unapplies
// each migration through a schema editor, and records outcomes in the
// history table. One executor run owns its connection exclusively and
// holds the run lock for the duration.
type Executor struct {
	db       *sqlx.DB
	dialect  sqlgen.Dialect
	recorder *Recorder
	locker   Locker
	registry *operation.Registry
	log      logger.Logger
}

func New(db *sqlx.DB, dialect sqlgen.Dialect, recorder *Recorder, locker Locker, registry *operation.Registry) *Executor {
	if registry == nil {
		registry = operation.NewRegistry()
	}
	return &Executor{
		db:       db,
		dialect:  dialect,
		recorder: recorder,
		locker:   locker,
		registry: registry,
		log:      logger.Executor(),
	}
}

// Apply runs every unapplied migration in plan order, stopping after
// opts.Target when set. Already-applied migrations are skipped, so
// re-running a plan is idempotent.
func (e *Executor) Apply(ctx context.Context, plan []*migration.Migration, opts Options) (*Report, error) {
	if err := e.locker.Acquire(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := e.locker.Release(context.WithoutCancel(ctx)); err != nil {
			e.log.Warn("failed to release run lock", "error", err)
		}
	}()

	if err := e.recorder.EnsureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := e.recorder.Applied(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, m := range plan {
		// Cancellation is honored between migrations, never inside an
		// in-flight transaction.
		if err := ctx.Err(); err != nil {
			return report, err
		}

		key := m.Key()
		if _, ok := applied[key]; ok {
			report.Skipped = append(report.Skipped, key)
		} else {
			if err := e.applyOne(ctx, m, opts.Fake); err != nil {
				return report, &MigrationFailedError{Migration: key, Applied: report.Applied, Cause: err}
			}
			report.Applied = append(report.Applied, key)
			e.log.Info("applied migration", "migration", key.String(), "fake", opts.Fake)
		}

		if opts.Target != nil && key == *opts.Target {
			break
		}
	}
	return report, nil
}

// Unapply reverses applied migrations in reverse plan order. With a
// target, everything after the target is unapplied and the target
// itself stays; without one, every applied migration in the plan is
// reversed. The whole request is refused before any SQL runs if any
// selected operation is irreversible.
func (e *Executor) Unapply(ctx context.Context, plan []*migration.Migration, opts Options) (*Report, error) {
	if err := e.locker.Acquire(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := e.locker.Release(context.WithoutCancel(ctx)); err != nil {
			e.log.Warn("failed to release run lock", "error", err)
		}
	}()

	if err := e.recorder.EnsureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := e.recorder.Applied(ctx)
	if err != nil {
		return nil, err
	}

	selected, err := selectBackward(plan, applied, opts.Target)
	if err != nil {
		return nil, err
	}

	// Fail fast: compute every reversal before touching the database.
	reversed := make([][]operation.Operation, len(selected))
	for i, m := range selected {
		ops, blocker := m.ReverseOperations()
		if blocker != nil {
			return nil, &IrreversibleError{Migration: m.Key(), Op: blocker}
		}
		reversed[i] = ops
	}

	report := &Report{}
	for i, m := range selected {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key := m.Key()
		if err := e.unapplyOne(ctx, m, reversed[i], opts.Fake); err != nil {
			return report, &MigrationFailedError{Migration: key, Applied: report.Unapplied, Cause: err}
		}
		report.Unapplied = append(report.Unapplied, key)
		e.log.Info("unapplied migration", "migration", key.String(), "fake", opts.Fake)
	}
	return report, nil
}

// applyOne runs one migration inside its own editor session. The
// history record is the last statement in the same transaction, so
// "applied" and "recorded as applied" cannot disagree after a crash.
func (e *Executor) applyOne(ctx context.Context, m *migration.Migration, fake bool) error {
	key := m.Key()
	if fake {
		return e.recorder.RecordApplied(ctx, e.db, key)
	}

	if m.Atomic {
		ed, err := editor.NewAtomic(ctx, e.db, e.dialect)
		if err != nil {
			return err
		}
		if err := e.runOperations(ctx, ed, m.Operations); err != nil {
			_ = ed.Rollback(ctx)
			return err
		}
		if err := e.recorder.RecordApplied(ctx, ed.Conn(), key); err != nil {
			_ = ed.Rollback(ctx)
			return err
		}
		return ed.Finish(ctx)
	}

	ed := editor.NewDeferred(e.db, e.dialect)
	if err := e.runOperations(ctx, ed, m.Operations); err != nil {
		_ = ed.Rollback(ctx)
		return err
	}
	if err := ed.Finish(ctx); err != nil {
		return err
	}
	return e.recorder.RecordApplied(ctx, e.db, key)
}

func (e *Executor) unapplyOne(ctx context.Context, m *migration.Migration, ops []operation.Operation, fake bool) error {
	key := m.Key()
	if fake {
		return e.recorder.RecordUnapplied(ctx, e.db, key)
	}

	if m.Atomic {
		ed, err := editor.NewAtomic(ctx, e.db, e.dialect)
		if err != nil {
			return err
		}
		if err := e.runOperations(ctx, ed, ops); err != nil {
			_ = ed.Rollback(ctx)
			return err
		}
		if err := e.recorder.RecordUnapplied(ctx, ed.Conn(), key); err != nil {
			_ = ed.Rollback(ctx)
			return err
		}
		return ed.Finish(ctx)
	}

	ed := editor.NewDeferred(e.db, e.dialect)
	if err := e.runOperations(ctx, ed, ops); err != nil {
		_ = ed.Rollback(ctx)
		return err
	}
	if err := ed.Finish(ctx); err != nil {
		return err
	}
	return e.recorder.RecordUnapplied(ctx, e.db, key)
}

// runOperations translates and executes each operation in authored
// order. RunCode operations resolve through the registry and run on the
// editor's connection so registered code shares the transaction.
func (e *Executor) runOperations(ctx context.Context, ed editor.Editor, ops []operation.Operation) error {
	for _, op := range ops {
		if rc, ok := op.(operation.RunCode); ok {
			fn, err := e.registry.Resolve(rc.ForwardID)
			if err != nil {
				return err
			}
			if err := fn(ctx, ed.Conn()); err != nil {
				return fmt.Errorf("code migration %q failed: %w", rc.ForwardID, err)
			}
			continue
		}

		statements, err := ed.Dialect().Translate(op)
		if err != nil {
			return err
		}
		for _, stmt := range statements {
			if err := ed.Execute(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

// selectBackward picks the applied migrations to reverse: everything
// after target in plan order, newest first. A nil target selects every
// applied migration in the plan.
func selectBackward(plan []*migration.Migration, applied map[migration.Key]time.Time, target *migration.Key) ([]*migration.Migration, error) {
	cutoff := -1
	if target != nil {
		for i, m := range plan {
			if m.Key() == *target {
				cutoff = i
				break
			}
		}
		if cutoff == -1 {
			return nil, fmt.Errorf("target migration %s is not in the plan", *target)
		}
	}

	var selected []*migration.Migration
	for i := len(plan) - 1; i > cutoff; i-- {
		if _, ok := applied[plan[i].Key()]; ok {
			selected = append(selected, plan[i])
		}
	}
	return selected, nil
}
