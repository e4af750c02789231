package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

var (
	backends   = map[string]Factory{}
	backendsMu sync.RWMutex
)

// Factory builds a storage backend from its configuration block. Backends
// register themselves from init under the name used in the config file.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Interface, error)
	Valid(config json.RawMessage) error
}

// Register adds a backend. Registering the same name twice panics.
func Register(name string, impl Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, ok := backends[name]; ok {
		panic(fmt.Sprintf("store: backend %q registered twice", name))
	}

	backends[name] = impl
}

func Get(name string) (Factory, bool) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	impl, ok := backends[name]
	return impl, ok
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	return slices.Sorted(maps.Keys(backends))
}
