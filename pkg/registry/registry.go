// Package registry maps module references to step factories.
//
// It is the explicit stand-in for dynamic module loading: a vertex names a
// module (and optionally a named export), and the registry hands back the
// factory that was registered under that name. Nothing is looked up
// reflectively or from global state.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// DefaultExport is the export selected when a vertex gives no key.
const DefaultExport = "default"

// Registry manages the available behavior modules.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]map[string]domain.Factory
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		modules: make(map[string]map[string]domain.Factory),
	}
}

// Register sets the default export of module name.
// If the module already has a default export, it is overwritten.
func (r *Registry) Register(name string, fn domain.Factory) {
	r.RegisterExport(name, DefaultExport, fn)
}

// RegisterExport sets the named export key of module name.
func (r *Registry) RegisterExport(name, key string, fn domain.Factory) {
	if key == "" {
		key = DefaultExport
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	exports, ok := r.modules[name]
	if !ok {
		exports = make(map[string]domain.Factory)
		r.modules[name] = exports
	}
	exports[key] = fn
}

// Resolve implements ports.ModuleResolver.
func (r *Registry) Resolve(_ context.Context, ref, key string) (domain.Factory, error) {
	if key == "" {
		key = DefaultExport
	}

	r.mu.RLock()
	exports, ok := r.modules[ref]
	var fn domain.Factory
	if ok {
		fn = exports[key]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: module %q is not registered", domain.ErrModuleResolution, ref)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: module %q has no export %q", domain.ErrModuleResolution, ref, key)
	}
	return fn, nil
}

// Names returns the registered module names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
