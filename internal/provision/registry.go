package provision

import (
	"fmt"
	"sync"

	"fleetd/internal/auth"
	"fleetd/internal/util"
)

// Factory builds a Backend, pulling any credentials it needs from the
// auth store.
type Factory func(store auth.Store) (Backend, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a backend factory to the registry.
// It panics on empty name, nil factory, or duplicate registration
// (programmer errors detected at startup).
func Register(name string, factory Factory) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("provision: empty backend name")
	}
	if factory == nil {
		panic("provision: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("provision: backend %q already registered", name))
	}

	registry[normalizedName] = factory
}

// Get constructs the named backend, using the store for credentials.
func Get(name string, store auth.Store) (Backend, error) {
	normalizedName := util.NormalizeKey(name)
	mu.RLock()
	factory, ok := registry[normalizedName]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provision: unknown backend %q", name)
	}

	return factory(store)
}

// List returns the names of all registered backends.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Reset clears the backend registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Factory{}
}
