package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// advisoryLockKey is the fixed pg_advisory_lock classid shared by all
// executor runs against one database.
const advisoryLockKey int64 = 0x6472696674 // "drift"

// Locker serializes executor runs against one database. Acquire either
// succeeds or returns ErrAlreadyRunning without blocking.
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// AdvisoryLock is the postgres implementation, a session-scoped
// pg_try_advisory_lock held for the whole run.
type AdvisoryLock struct {
	db  *sqlx.DB
	key int64
}

func NewAdvisoryLock(db *sqlx.DB) *AdvisoryLock {
	return &AdvisoryLock{db: db, key: advisoryLockKey}
}

func (l *AdvisoryLock) Acquire(ctx context.Context) error {
	var acquired bool
	if err := l.db.GetContext(ctx, &acquired, "SELECT pg_try_advisory_lock($1)", l.key); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	if !acquired {
		return ErrAlreadyRunning
	}
	return nil
}

func (l *AdvisoryLock) Release(ctx context.Context) error {
	var released bool
	if err := l.db.GetContext(ctx, &released, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	return nil
}

// LocalLock guards single-process use on backends without advisory
// locks.
type LocalLock struct {
	mu sync.Mutex
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(context.Context) error {
	if !l.mu.TryLock() {
		return ErrAlreadyRunning
	}
	return nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}
