// Package components owns the long-lived resources of a process and opens and closes
// them in dependency order.
package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trender/internal/graph"
)

const (
	StorageComponentName   = "storage"
	HistoryComponentName   = "history"
	PublisherComponentName = "publisher"
)

type IComponent interface {
	Name() string
	Dependencies() []string
	Validate() error
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error
}

type Registry struct {
	mu          sync.Mutex
	components  map[string]IComponent
	initialized []string
	logger      *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		components: make(map[string]IComponent),
		logger:     logger,
	}
}

func (r *Registry) Register(component IComponent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := component.Name()
	if _, exists := r.components[name]; exists {
		return fmt.Errorf("component %s already registered", name)
	}
	r.components[name] = component
	return nil
}

func (r *Registry) Get(name string) (IComponent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	comp, exists := r.components[name]
	return comp, exists
}

// Lookup returns the component registered under name as a T.
func Lookup[T IComponent](r *Registry, name string) (T, error) {
	var zero T
	comp, ok := r.Get(name)
	if !ok {
		return zero, fmt.Errorf("component %s not registered", name)
	}
	typed, ok := comp.(T)
	if !ok {
		return zero, fmt.Errorf("component %s has type %T", name, comp)
	}
	return typed, nil
}

// InitializeAll validates every component, then initializes them dependencies first.
// If one fails, the ones already initialized are closed again.
func (r *Registry) InitializeAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := make(map[string]graph.Node, len(r.components))
	for name, comp := range r.components {
		nodes[name] = componentNode{comp}
	}

	order, err := graph.TopologicalSort(nodes)
	if err != nil {
		return fmt.Errorf("invalid component graph: %w", err)
	}

	var invalid []error
	for _, name := range order {
		if err := r.components[name].Validate(); err != nil {
			invalid = append(invalid, fmt.Errorf("component %s: %w", name, err))
		}
	}
	if err := errors.Join(invalid...); err != nil {
		return fmt.Errorf("component validation failed: %w", err)
	}

	for _, name := range order {
		started := time.Now()
		if err := r.components[name].Initialize(ctx); err != nil {
			r.closeLocked(ctx)
			return fmt.Errorf("component %s initialization failed: %w", name, err)
		}
		r.initialized = append(r.initialized, name)
		r.logger.Debug("Component initialized", "component", name, "duration", time.Since(started))
	}
	return nil
}

// CloseAll closes initialized components in reverse order and returns every close
// error. Calling it again is a no-op.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(ctx)
}

func (r *Registry) closeLocked(ctx context.Context) error {
	var errs []error
	for i := len(r.initialized) - 1; i >= 0; i-- {
		name := r.initialized[i]
		if err := r.components[name].Close(ctx); err != nil {
			r.logger.Error("Error closing component", "component", name, "error", err)
			errs = append(errs, fmt.Errorf("component %s: %w", name, err))
		}
	}
	r.initialized = nil
	return errors.Join(errs...)
}

type componentNode struct {
	comp IComponent
}

func (cn componentNode) GetName() string {
	return cn.comp.Name()
}

func (cn componentNode) GetDependencies() []string {
	return cn.comp.Dependencies()
}
