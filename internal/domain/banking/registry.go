package banking

import (
	"fmt"
	"sync"
)

// AdapterRegistry is the dispatch table from BankType to adapter
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[BankType]BankAdapter
}

// NewAdapterRegistry creates a registry holding the given adapters
func NewAdapterRegistry(adapters ...BankAdapter) *AdapterRegistry {
	r := &AdapterRegistry{adapters: make(map[BankType]BankAdapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its bank type
func (r *AdapterRegistry) Register(adapter BankAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.BankType()] = adapter
}

// Get returns the adapter for the bank type
func (r *AdapterRegistry) Get(bankType BankType) (BankAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[bankType]
	if !ok {
		return nil, configError("resolve adapter", fmt.Errorf("%w: %s", ErrUnsupportedBank, bankType))
	}
	return a, nil
}

// BankTypes returns the registered bank types
func (r *AdapterRegistry) BankTypes() []BankType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]BankType, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	return types
}
