package errcode

import (
	"fmt"
	"sync"
)

// Registry guards against two errors sharing one code
type Registry struct {
	mu    sync.RWMutex
	codes map[int]*LayeredError
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{codes: make(map[int]*LayeredError)}
}

// Register records err in the global registry and returns it, panicking on a code conflict.
// Meant for package-level var blocks.
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Lookup returns the globally registered error for code
func Lookup(code int) (*LayeredError, bool) {
	return globalRegistry.Lookup(code)
}

func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.codes[err.Code()]; ok && existing.Message() != err.Message() {
		panic(fmt.Sprintf("error code conflict: %d already registered as %q, cannot register %q",
			err.Code(), existing.Message(), err.Message()))
	}
	r.codes[err.Code()] = err
	return err
}

func (r *Registry) Lookup(code int) (*LayeredError, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	err, ok := r.codes[code]
	return err, ok
}

// Count returns the number of registered codes
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codes)
}
