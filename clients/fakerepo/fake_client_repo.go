package fakerepo

import (
	"sync"

	"github.com/jrsteele09/go-oauth-provider/clients"
)

// FakeClientRepo is a thread-safe in-memory clients.Registry used by the
// server bootstrap and by tests.
type FakeClientRepo struct {
	mu      sync.RWMutex
	clients map[string]*clients.Client
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{clients: make(map[string]*clients.Client)}
}

// Add registers a client. Overwrites any existing entry with the same ID.
func (r *FakeClientRepo) Add(client *clients.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *client
	r.clients[client.ID] = &copied
}

func (r *FakeClientRepo) FindByID(id string) (*clients.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	copied := *client
	return &copied, nil
}
