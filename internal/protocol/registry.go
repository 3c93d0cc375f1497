package protocol

import (
	"fmt"
	"sort"
	"sync"

	"labtrace/internal/services"
)

// Registry holds the protocol modules available for dispatch, keyed by
// protocol ID.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module. Duplicate protocol IDs are rejected.
func (r *Registry) Register(module Module) error {
	id := module.ProtocolID()
	if id == "" {
		return services.Wrap(services.ErrValidation, "protocol", "register", "protocol ID is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[id]; exists {
		return services.Wrap(services.ErrValidation, "protocol", "register",
			fmt.Sprintf("protocol %s already registered", id), nil)
	}
	r.modules[id] = module
	return nil
}

// Get returns the module for a protocol ID.
func (r *Registry) Get(protocolID string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	module, ok := r.modules[protocolID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "protocol", "lookup",
			fmt.Sprintf("protocol %s is not registered", protocolID), nil)
	}
	return module, nil
}

// IDs returns the registered protocol IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
