package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trender/internal/config"
)

// Factory opens a backend for the given storage section.
type Factory func(ctx context.Context, cfg config.StorageConfig) (StorageInterface, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a backend available under name. Backends register from init, so a
// duplicate name is a programming error.
func Register(name string, fn Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, dup := factories[name]; dup {
		panic("storage: backend registered twice: " + name)
	}
	factories[name] = fn
}

// Backends returns the registered backend names in order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func New(ctx context.Context, cfg config.StorageConfig) (StorageInterface, error) {
	backend := cfg.Type
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	fn, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage type %q (registered: %s)", backend, strings.Join(Backends(), ", "))
	}

	return fn(ctx, cfg)
}
