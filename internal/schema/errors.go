package schema

import "errors"

// ErrInvalidState marks structurally malformed state input: duplicate
// model keys, duplicate field names, missing row identity, or dangling
// foreign key references. Wrapped errors carry the specifics.
var ErrInvalidState = errors.New("invalid schema state")
