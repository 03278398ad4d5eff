package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// PresenceScope selects who hears about a user's presence transitions.
type PresenceScope string

const (
	// ScopeAll broadcasts to every other connected session.
	ScopeAll PresenceScope = "all"
	// ScopeContacts restricts the broadcast to users sharing a conversation
	// with the transitioning user.
	ScopeContacts PresenceScope = "contacts"
)

// ContactSource resolves the users a given user shares a conversation with.
type ContactSource interface {
	Contacts(userID string) ([]string, error)
}

// PresenceFanout drains presence transitions and pushes them to the scoped
// set of live sessions. Delivery is best-effort: no ordering, durability or
// retry guarantees. A slow sink only burns its own per-sink timeout.
type PresenceFanout struct {
	log         *slog.Logger
	events      chan event.DomainEvent
	registry    contract.ISessionRegistry
	contacts    ContactSource
	scope       PresenceScope
	sinkTimeout time.Duration
}

func NewPresenceFanout(log *slog.Logger, events chan event.DomainEvent,
	registry contract.ISessionRegistry, contacts ContactSource,
	scope PresenceScope, sinkTimeout time.Duration) *PresenceFanout {
	return &PresenceFanout{
		log:         log,
		events:      events,
		registry:    registry,
		contacts:    contacts,
		scope:       scope,
		sinkTimeout: sinkTimeout,
	}
}

func (w *PresenceFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			if presence, isPresence := evt.(event.PresenceChanged); isPresence {
				w.Fanout(ctx, presence)
			}
		}
	}
}

// Fanout pushes one presence transition to every sink in scope.
func (w *PresenceFanout) Fanout(ctx context.Context, evt event.PresenceChanged) {
	for _, sink := range w.audience(evt.UserID) {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Debug("Presence push dropped", "user_id", evt.UserID, "error", err)
		}
		cancel()
	}
}

// audience resolves the sink set for the configured scope. When the contact
// lookup fails the fanout degrades to the full broadcast rather than staying
// silent; presence is informational and not sensitive.
func (w *PresenceFanout) audience(userID string) []contract.EventSink {
	if w.scope != ScopeContacts || w.contacts == nil {
		return w.registry.Others(userID)
	}

	contactIDs, err := w.contacts.Contacts(userID)
	if err != nil {
		w.log.Warn("Contact lookup failed, broadcasting to all", "user_id", userID, "error", err)
		return w.registry.Others(userID)
	}

	var sinks []contract.EventSink
	for _, contactID := range contactIDs {
		if sink, ok := w.registry.Lookup(contactID); ok {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}
