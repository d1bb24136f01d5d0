package bridge

import (
	"fmt"
	"sync"
)

// Registry tracks the live sessions of one process, keyed by Twilio stream
// SID. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session under its stream SID. It fails when the SID is
// already registered.
func (r *Registry) Add(streamSID string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[streamSID]; ok {
		return fmt.Errorf("bridge: stream %q already has an active session", streamSID)
	}
	r.sessions[streamSID] = s
	return nil
}

// Remove drops the session registered under streamSID, if any.
func (r *Registry) Remove(streamSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, streamSID)
}

// Get returns the session for streamSID, or nil.
func (r *Registry) Get(streamSID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[streamSID]
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// snapshot returns the current sessions without holding the lock during
// iteration by callers.
func (r *Registry) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
