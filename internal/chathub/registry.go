package chathub

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// ErrAlreadyRegistered means the session already owns a live channel.
var ErrAlreadyRegistered = errors.New("session already has a registered channel")

// Registry maps a session to its live channel handle.
// It does no locking of its own; Matcher serializes every access.
type Registry struct {
	clients map[string]Client
}

func newRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(sessionID string, c Client) error {
	if _, exists := r.clients[sessionID]; exists {
		return errors.Wrapf(ErrAlreadyRegistered, "session %s", sessionID)
	}
	r.clients[sessionID] = c
	return nil
}

func (r *Registry) Unregister(sessionID string) bool {
	if _, exists := r.clients[sessionID]; !exists {
		return false
	}
	delete(r.clients, sessionID)
	return true
}

func (r *Registry) Lookup(sessionID string) (Client, bool) {
	c, ok := r.clients[sessionID]
	return c, ok
}

// Snapshot returns a copy of the mapping, safe to iterate while the
// registry keeps changing.
func (r *Registry) Snapshot() map[string]Client {
	return lo.Assign(r.clients)
}

func (r *Registry) Len() int {
	return len(r.clients)
}
