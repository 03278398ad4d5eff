package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
)

// PresenceTracker flips a user's online state on connect and disconnect.
// Transitions are Offline -> Online on registration and Online -> Offline on
// disconnect, nothing else. Each transition is persisted best-effort and then
// announced to other sessions through the events channel, which the fanout
// worker drains.
//
// Presence is not authoritative: a failed storage write is logged and the
// in-memory transition and broadcast still happen.
type PresenceTracker struct {
	mu     sync.RWMutex
	states map[string]domain.Presence
	users  repositories.IUserRepository
	events chan event.DomainEvent
	log    *slog.Logger
}

func NewPresenceTracker(users repositories.IUserRepository, events chan event.DomainEvent, log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{
		states: make(map[string]domain.Presence),
		users:  users,
		events: events,
		log:    log,
	}
}

// HandleConnect marks the user online and announces the transition.
func (t *PresenceTracker) HandleConnect(identity domain.Identity) {
	t.transition(identity.UserID, true)
}

// HandleDisconnect marks the user offline, stamps lastSeen and announces it.
func (t *PresenceTracker) HandleDisconnect(userID string) {
	t.transition(userID, false)
}

func (t *PresenceTracker) transition(userID string, isOnline bool) {
	now := time.Now().UTC()
	state := domain.Presence{UserID: userID, IsOnline: isOnline, LastSeen: now}

	t.mu.Lock()
	t.states[userID] = state
	t.mu.Unlock()

	if err := t.users.UpdatePresence(userID, isOnline, now); err != nil {
		t.log.Warn("Presence write failed, keeping in-memory state",
			"user_id", userID, "is_online", isOnline, "error", err)
	}

	t.publish(event.PresenceChanged{UserID: userID, IsOnline: isOnline, LastSeen: now})
}

func (t *PresenceTracker) publish(evt event.DomainEvent) {
	select {
	case t.events <- evt:
	default:
		t.log.Warn(fmt.Sprintf("Presence event channel full, dropping %s", evt.Name()))
	}
}

// IsOnline reports the tracked online flag for a user.
func (t *PresenceTracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[userID].IsOnline
}

// Snapshot returns a copy of every tracked presence state.
// The gateway sends it to freshly connected sessions.
func (t *PresenceTracker) Snapshot() []domain.Presence {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make([]domain.Presence, 0, len(t.states))
	for _, state := range t.states {
		snapshot = append(snapshot, state)
	}
	return snapshot
}
