package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a unit definition to the registry.
// Panics if a unit with the same key or order is already registered, or if
// the definition has neither a mapper nor an apply function.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("unit already registered: %s", def.Info.Key))
	}
	for _, other := range registry {
		if other.Info.Order == def.Info.Order {
			panic(fmt.Sprintf("unit %s reuses order %d of %s", def.Info.Key, def.Info.Order, other.Info.Key))
		}
	}
	if def.Map == nil && def.Apply == nil {
		panic(fmt.Sprintf("unit %s has no Map or Apply", def.Info.Key))
	}
	if def.Map != nil && len(def.ConflictColumns) == 0 {
		panic(fmt.Sprintf("unit %s has no conflict columns", def.Info.Key))
	}

	registry[def.Info.Key] = def
}

// All returns all registered unit definitions in run order.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Order < result[j].Info.Order
	})

	return result
}

// TableCount returns the number of registered units.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered units.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TableDefinition)
}
