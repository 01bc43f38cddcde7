package index

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

// Deps are the collaborators a factory may wire into a new index.
type Deps struct {
	// Store is the index's own store. The engine keeps its checkpoint there too.
	Store kvdb.Store
	// Chain gives access to block data, for example to undo blocks on rewind.
	Chain Chain
	Log   *logger.Logger
}

// Factory creates an index from its configuration.
type Factory func(cfg config.IndexConfig, deps Deps) (Index, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register makes an index type available to Create. It is typically called from init().
// Type names are case-insensitive.
func Register(indexType string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	name := strings.ToLower(indexType)
	if _, exists := registry[name]; exists {
		logger.GetDefaultLogger().Infof("index type %s already registered, it will be overwritten", name)
	}
	registry[name] = factory
}

// GetFactory returns the factory of indexType, or nil.
func GetFactory(indexType string) Factory {
	mu.RLock()
	defer mu.RUnlock()
	return registry[strings.ToLower(indexType)]
}

// ListRegistered returns the registered index types in alphabetical order.
func ListRegistered() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create builds an index of indexType.
func Create(indexType string, cfg config.IndexConfig, deps Deps) (Index, error) {
	factory := GetFactory(indexType)
	if factory == nil {
		return nil, fmt.Errorf("unknown index type: %s (registered types: %v)", indexType, ListRegistered())
	}

	return factory(cfg, deps)
}
