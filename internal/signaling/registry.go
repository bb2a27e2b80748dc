// Package signaling fans negotiation messages out between connected peers.
// It never looks inside a payload.
package signaling

import "sync"

// Peer is a connected endpoint. Send must not block: it reports false when
// the message could not be queued (buffer full or peer gone).
type Peer interface {
	ID() string
	Send(frame []byte) bool
}

// Registry is the set of currently connected peers.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[string]Peer),
	}
}

// Add registers p, replacing any peer with the same ID.
func (r *Registry) Add(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID()] = p
}

// Remove unregisters the peer and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[id]; !ok {
		return false
	}
	delete(r.peers, id)
	return true
}

// Others returns every registered peer except the one with excludeID.
func (r *Registry) Others(excludeID string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.peers))
	for id, p := range r.peers {
		if id != excludeID {
			peers = append(peers, p)
		}
	}
	return peers
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
