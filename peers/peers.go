package peers

import (
	"time"

	"github.com/jrsteele09/go-sso-service/internal/errors"
)

// Descriptor describes one statically registered peer service. BaseURLs
// lists the primary address first; any further entries are alternates tried
// when a delivery attempt to the primary fails. Secret is the shared key
// used to sign and verify logout notifications to and from this peer.
type Descriptor struct {
	ID       string   `json:"id"`
	BaseURLs []string `json:"baseURLs"`
	Secret   string   `json:"secret"`
}

// Event is a logout notification broadcast to peer services. It carries no
// session token - peers invalidate their own local state, scoped by Subject
// when present, otherwise everything (degraded mode).
type Event struct {
	ID        string    `json:"id"`
	Origin    string    `json:"origin"`
	Subject   string    `json:"subject,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry is the static peer registry, loaded once at startup.
type Registry struct {
	peers map[string]Descriptor
}

func NewRegistry(descriptors []Descriptor) *Registry {
	byID := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		byID[d.ID] = d
	}
	return &Registry{peers: byID}
}

// Get returns the descriptor for a registered peer.
func (r *Registry) Get(id string) (Descriptor, error) {
	d, ok := r.peers[id]
	if !ok {
		return Descriptor{}, errors.ErrUnknownPeer
	}
	return d, nil
}

// All returns every registered peer.
func (r *Registry) All() []Descriptor {
	all := make([]Descriptor, 0, len(r.peers))
	for _, d := range r.peers {
		all = append(all, d)
	}
	return all
}
