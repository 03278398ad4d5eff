// Package runtime holds the live-connection core: the session registry,
// presence tracking, message relay and typing notification. It owns no
// business rules beyond delivery routing and no transport details.
package runtime

import (
	"sync"

	"chat-relay/contract"
)

// SessionRegistry maps an authenticated user id to at most one live sink.
// A second connection from the same user replaces the entry; the superseded
// sink is handed back to the caller, which decides whether to close it.
//
// All mutations are serialized behind the mutex so concurrent connects and
// disconnects of different users never lose updates on the backing map.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]contract.EventSink)}
}

// Register installs the sink for userID and returns the prior sink, if any.
func (r *SessionRegistry) Register(userID string, sink contract.EventSink) (contract.EventSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior, existed := r.sessions[userID]
	r.sessions[userID] = sink
	return prior, existed
}

// Unregister removes the mapping for userID. No-op if absent.
func (r *SessionRegistry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Lookup returns the live sink for userID without side effects.
func (r *SessionRegistry) Lookup(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[userID]
	return sink, ok
}

// Others returns a snapshot of every registered sink except userID's own.
// The snapshot is safe to iterate without holding the registry lock.
func (r *SessionRegistry) Others(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for id, sink := range r.sessions {
		if id == userID {
			continue
		}
		sinks = append(sinks, sink)
	}
	return sinks
}
