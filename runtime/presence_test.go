package runtime

import (
	"fmt"
	"log/slog"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPresenceTracker_Connect_Then_Disconnect(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUsers := mocks.NewMockIUserRepository(ctrl)
	events := make(chan event.DomainEvent, 8)
	tracker := NewPresenceTracker(mockUsers, events, slog.Default())
	userID := uuid.NewString()

	// Given both transitions reach storage
	gomock.InOrder(
		mockUsers.EXPECT().UpdatePresence(userID, true, gomock.Any()).Return(nil),
		mockUsers.EXPECT().UpdatePresence(userID, false, gomock.Any()).Return(nil),
	)

	// When the user connects
	tracker.HandleConnect(domain.Identity{UserID: userID, Username: "alice"})

	// Then the user is online and an online event was published
	req.True(tracker.IsOnline(userID))
	evt := (<-events).(event.PresenceChanged)
	req.Equal(userID, evt.UserID)
	req.True(evt.IsOnline)

	// When the user disconnects
	tracker.HandleDisconnect(userID)

	// Then the user is offline with a lastSeen stamp and an offline event
	req.False(tracker.IsOnline(userID))
	evt = (<-events).(event.PresenceChanged)
	req.False(evt.IsOnline)
	req.False(evt.LastSeen.IsZero())
}

func TestPresenceTracker_Storage_Failure_Is_Best_Effort(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUsers := mocks.NewMockIUserRepository(ctrl)
	events := make(chan event.DomainEvent, 8)
	tracker := NewPresenceTracker(mockUsers, events, slog.Default())
	userID := uuid.NewString()

	// Given the presence write fails
	mockUsers.EXPECT().
		UpdatePresence(userID, true, gomock.Any()).
		Return(fmt.Errorf("storage down"))

	// When the user connects anyway
	tracker.HandleConnect(domain.Identity{UserID: userID})

	// Then the in-memory transition and the broadcast still happen
	req.True(tracker.IsOnline(userID))
	req.Len(events, 1)
}

func TestPresenceTracker_Snapshot_Contains_Every_Tracked_State(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUsers := mocks.NewMockIUserRepository(ctrl)
	mockUsers.EXPECT().UpdatePresence(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	events := make(chan event.DomainEvent, 8)
	tracker := NewPresenceTracker(mockUsers, events, slog.Default())
	alice, bob := uuid.NewString(), uuid.NewString()

	tracker.HandleConnect(domain.Identity{UserID: alice})
	tracker.HandleConnect(domain.Identity{UserID: bob})
	tracker.HandleDisconnect(bob)

	snapshot := tracker.Snapshot()
	req.Len(snapshot, 2)

	byUser := make(map[string]domain.Presence)
	for _, state := range snapshot {
		byUser[state.UserID] = state
	}
	req.True(byUser[alice].IsOnline)
	req.False(byUser[bob].IsOnline)
}

func TestPresenceTracker_Full_Event_Channel_Does_Not_Block(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUsers := mocks.NewMockIUserRepository(ctrl)
	mockUsers.EXPECT().UpdatePresence(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	// Given a channel with room for a single event
	events := make(chan event.DomainEvent, 1)
	tracker := NewPresenceTracker(mockUsers, events, slog.Default())

	// When two transitions race the slow consumer
	tracker.HandleConnect(domain.Identity{UserID: uuid.NewString()})
	tracker.HandleConnect(domain.Identity{UserID: uuid.NewString()})

	// Then the second event is dropped instead of blocking the connect path
	req.Len(events, 1)
}
