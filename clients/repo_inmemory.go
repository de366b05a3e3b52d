package clients

import (
	"sync"

	"github.com/jrsteele09/go-sso-service/internal/errors"
)

// InMemoryRepo is a read-mostly in-memory client registry.
type InMemoryRepo struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewInMemoryRepo(registered []Client) *InMemoryRepo {
	byID := make(map[string]*Client, len(registered))
	for i := range registered {
		c := registered[i]
		byID[c.ID] = &c
	}
	return &InMemoryRepo{clients: byID}
}

func (r *InMemoryRepo) Get(clientID string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	if !ok {
		return nil, errors.ErrInvalidClient
	}

	// Return a copy to prevent external modifications
	copied := *client
	return &copied, nil
}

func (r *InMemoryRepo) List() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		copied := *c
		list = append(list, &copied)
	}
	return list
}
