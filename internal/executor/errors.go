package executor

import (
	"errors"
	"fmt"

	"github.com/eleven-am/drift/internal/migration"
	"github.com/eleven-am/drift/internal/operation"
)

// ErrAlreadyRunning means another executor holds the run lock. No state
// has been mutated; the caller can retry later.
var ErrAlreadyRunning = errors.New("another migration run is already in progress")

// IrreversibleError refuses an unapply whose backward subsequence
// contains an operation with no computable reverse. Raised before any
// SQL runs.
type IrreversibleError struct {
	Migration migration.Key
	Op        operation.Operation
}

func (e *IrreversibleError) Error() string {
	return fmt.Sprintf("migration %s cannot be reversed: %s has no inverse", e.Migration, e.Op.Describe())
}

// MigrationFailedError reports exactly which migration failed and which
// preceding ones in the plan succeeded and stay recorded.
type MigrationFailedError struct {
	Migration migration.Key
	Applied   []migration.Key
	Cause     error
}

func (e *MigrationFailedError) Error() string {
	return fmt.Sprintf("migration %s failed after %d prior migrations succeeded: %v",
		e.Migration, len(e.Applied), e.Cause)
}

func (e *MigrationFailedError) Unwrap() error {
	return e.Cause
}
