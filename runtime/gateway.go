package runtime

import (
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Gateway is the lifecycle seam between the transport and the core.
// The transport invokes OnConnect once a connection is authenticated and
// OnDisconnect when it goes away, in that order, per connection.
type Gateway struct {
	registry *SessionRegistry
	presence *PresenceTracker
	typing   *TypingNotifier
	log      *slog.Logger
}

func NewGateway(registry *SessionRegistry, presence *PresenceTracker,
	typing *TypingNotifier, log *slog.Logger) *Gateway {
	return &Gateway{registry: registry, presence: presence, typing: typing, log: log}
}

// OnConnect installs the session and flips the user online. A prior session
// for the same user is explicitly closed before the new one takes over, so a
// reconnect never leaks a stale half-open handle.
func (g *Gateway) OnConnect(identity domain.Identity, sink contract.EventSink) {
	prior, existed := g.registry.Register(identity.UserID, sink)
	if existed {
		g.log.Info("Session replaced by a newer connection", "user_id", identity.UserID)
		if err := prior.Close(); err != nil {
			g.log.Debug("Superseded session close failed", "user_id", identity.UserID, "error", err)
		}
		// The user stays online throughout a replacement; no presence churn.
		return
	}
	g.presence.HandleConnect(identity)
}

// OnDisconnect tears a session down: typing timers first, then the registry
// entry, then the offline transition. The first two are synchronous so no
// later event for this user can reach a closed handle.
func (g *Gateway) OnDisconnect(userID string, sink contract.EventSink) {
	// A replaced session's deferred disconnect must not evict its successor,
	// nor cancel timers the successor armed in the meantime.
	if current, ok := g.registry.Lookup(userID); !ok || current != sink {
		return
	}

	g.typing.CancelUser(userID)
	g.registry.Unregister(userID)
	g.presence.HandleDisconnect(userID)
}
