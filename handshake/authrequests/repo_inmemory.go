package authrequests

import (
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		requests: make(map[string]*Request),
	}
}

// Upsert stores or updates an in-flight authorization request
func (r *InMemoryRepo) Upsert(state string, request *Request) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if request == nil {
		return errors.New("request cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to prevent external modifications
	copied := *request
	r.requests[state] = &copied
	return nil
}

// Get retrieves an authorization request by its state parameter
func (r *InMemoryRepo) Get(state string) (*Request, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	request, exists := r.requests[state]
	if !exists {
		return nil, errors.New("state not found")
	}

	copied := *request
	return &copied, nil
}

// Consume removes and returns the request under a single critical section.
// Exactly one caller can win the request for a given state.
func (r *InMemoryRepo) Consume(state string) (*Request, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	request, exists := r.requests[state]
	if !exists {
		return nil, errors.New("state not found")
	}
	delete(r.requests, state)
	return request, nil
}

// Delete removes an authorization request
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.requests, state)
	return nil
}

func (r *InMemoryRepo) DeleteExpired(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for state, request := range r.requests {
		if request.CreatedAt.Before(cutoff) {
			delete(r.requests, state)
			deleted++
		}
	}
	return deleted
}
