package operation

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// CodeFunc is a registered data-migration function. It receives the
// connection (or transaction) the surrounding migration runs on.
type CodeFunc func(ctx context.Context, db sqlx.ExtContext) error

// Registry maps RunCode identifiers to registered functions. The engine
// carries only identifiers; resolution happens here at execution time.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]CodeFunc
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]CodeFunc)}
}

// Register binds an identifier to a function. Re-registering an
// identifier is rejected so two packages cannot silently shadow each
// other.
func (r *Registry) Register(id string, fn CodeFunc) error {
	if fn == nil {
		return fmt.Errorf("nil function registered for %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[id]; exists {
		return fmt.Errorf("function %q already registered", id)
	}
	r.funcs[id] = fn
	return nil
}

// Resolve looks up a registered function by identifier.
func (r *Registry) Resolve(id string) (CodeFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[id]
	if !ok {
		return nil, fmt.Errorf("no function registered for %q", id)
	}
	return fn, nil
}
