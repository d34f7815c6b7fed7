package provider

import (
	"sync"

	"github.com/marketsrc/hermes/internal/core"
)

// Registry manages provider clients
type Registry struct {
	mu      sync.RWMutex
	clients map[core.ProviderID]Client
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[core.ProviderID]Client),
	}
}

// Register adds a client to the registry
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

// Get retrieves a client by provider ID
func (r *Registry) Get(id core.ProviderID) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// IDs returns the registered provider IDs
func (r *Registry) IDs() []core.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]core.ProviderID, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}
