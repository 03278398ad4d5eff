package runtime

import (
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newGatewayFixture(t *testing.T) (*Gateway, *SessionRegistry, *PresenceTracker) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockUsers := mocks.NewMockIUserRepository(ctrl)
	mockUsers.EXPECT().UpdatePresence(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	registry := NewSessionRegistry()
	presence := NewPresenceTracker(mockUsers, make(chan event.DomainEvent, 16), slog.Default())
	typing := NewTypingNotifier(registry, testTypingTimeout, slog.Default())
	return NewGateway(registry, presence, typing, slog.Default()), registry, presence
}

// Presence must mirror the registry at every observable point after a
// connect/disconnect pair completes.
func TestGateway_Online_Iff_Registered(t *testing.T) {
	req := require.New(t)
	gateway, registry, presence := newGatewayFixture(t)
	userID := uuid.NewString()
	sink := &recordingSink{}

	// When the user connects
	gateway.OnConnect(domain.Identity{UserID: userID}, sink)

	// Then registry entry and online flag agree
	_, registered := registry.Lookup(userID)
	req.True(registered)
	req.True(presence.IsOnline(userID))

	// When the user disconnects
	gateway.OnDisconnect(userID, sink)

	// Then both are gone together
	_, registered = registry.Lookup(userID)
	req.False(registered)
	req.False(presence.IsOnline(userID))
}

func TestGateway_Reconnect_Closes_Superseded_Session(t *testing.T) {
	req := require.New(t)
	gateway, registry, presence := newGatewayFixture(t)
	userID := uuid.NewString()
	first := &recordingSink{}
	second := &recordingSink{}

	// Given a live session
	gateway.OnConnect(domain.Identity{UserID: userID}, first)

	// When the same user connects again
	gateway.OnConnect(domain.Identity{UserID: userID}, second)

	// Then the old handle is closed instead of leaking
	req.True(first.Closed())
	req.False(second.Closed())

	// And the user stayed online on the new sink
	found, _ := registry.Lookup(userID)
	req.Same(second, found)
	req.True(presence.IsOnline(userID))
}

func TestGateway_Stale_Disconnect_Does_Not_Evict_Successor(t *testing.T) {
	req := require.New(t)
	gateway, registry, presence := newGatewayFixture(t)
	userID := uuid.NewString()
	first := &recordingSink{}
	second := &recordingSink{}

	// Given a replaced session whose teardown arrives late
	gateway.OnConnect(domain.Identity{UserID: userID}, first)
	gateway.OnConnect(domain.Identity{UserID: userID}, second)

	// When the superseded connection finally reports its disconnect
	gateway.OnDisconnect(userID, first)

	// Then the successor session survives and the user stays online
	found, registered := registry.Lookup(userID)
	req.True(registered)
	req.Same(second, found)
	req.True(presence.IsOnline(userID))
}

func TestGateway_Disconnect_Cancels_Typing_Timers(t *testing.T) {
	req := require.New(t)
	gateway, _, _ := newGatewayFixture(t)
	alice, bob := uuid.NewString(), uuid.NewString()
	aliceSink := &recordingSink{}
	bobSink := &recordingSink{}

	gateway.OnConnect(domain.Identity{UserID: alice}, aliceSink)
	gateway.OnConnect(domain.Identity{UserID: bob}, bobSink)

	// Given alice is typing to bob
	gateway.typing.NotifyTyping(alice, bob)
	req.Equal(1, countByName(bobSink.Events(), "typing"))

	// When alice disconnects mid-burst
	gateway.OnDisconnect(alice, aliceSink)

	// Then bob's indicator clears once, and the dropped timer never fires
	// a duplicate afterwards
	req.Equal(1, countByName(bobSink.Events(), "stop_typing"))
	time.Sleep(2 * testTypingTimeout)
	req.Equal(1, countByName(bobSink.Events(), "stop_typing"))
}

func TestGateway_Stale_Disconnect_Keeps_Successor_Typing_Timers(t *testing.T) {
	req := require.New(t)
	gateway, _, _ := newGatewayFixture(t)
	alice, bob := uuid.NewString(), uuid.NewString()
	first := &recordingSink{}
	second := &recordingSink{}
	bobSink := &recordingSink{}

	gateway.OnConnect(domain.Identity{UserID: alice}, first)
	gateway.OnConnect(domain.Identity{UserID: bob}, bobSink)
	gateway.OnConnect(domain.Identity{UserID: alice}, second)

	// Given the successor session armed a typing timer
	gateway.typing.NotifyTyping(alice, bob)

	// When the superseded connection reports its late disconnect
	gateway.OnDisconnect(alice, first)

	// Then the successor's timer still expires into a stop push
	time.Sleep(2 * testTypingTimeout)
	req.Equal(1, countByName(bobSink.Events(), "stop_typing"))
}
