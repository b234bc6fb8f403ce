package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Skryldev/image-converter/config"
	apperrors "github.com/Skryldev/image-converter/errors"
)

// RuntimeFactory builds a Runtime from configuration.  It must not start the
// runtime; the Loader does that on first use.
type RuntimeFactory func(cfg config.Config) (Runtime, error)

// ── Registry ──────────────────────────────────────────────────────────────────

// RuntimeRegistry maps backend names to runtime factories.  Thread-safe.
type RuntimeRegistry struct {
	mu        sync.RWMutex
	factories map[config.Backend]RuntimeFactory
}

// NewRuntimeRegistry returns an empty RuntimeRegistry.
func NewRuntimeRegistry() *RuntimeRegistry {
	return &RuntimeRegistry{factories: make(map[config.Backend]RuntimeFactory)}
}

// Register adds or replaces the factory for backend.
func (r *RuntimeRegistry) Register(backend config.Backend, f RuntimeFactory) {
	r.mu.Lock()
	r.factories[backend] = f
	r.mu.Unlock()
}

// Build creates the runtime selected by cfg.Backend.
func (r *RuntimeRegistry) Build(cfg config.Config) (Runtime, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.CategoryConfig, "runtime.build",
			fmt.Errorf("backend %q is not linked into this binary (have %v)", cfg.Backend, r.Backends()))
	}
	rt, err := f(cfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "runtime.build", err)
	}
	return rt, nil
}

// Backends lists registered backend names in sorted order.
func (r *RuntimeRegistry) Backends() []config.Backend {
	r.mu.RLock()
	out := make([]config.Backend, 0, len(r.factories))
	for b := range r.factories {
		out = append(out, b)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
