package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/moderation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type relayFixture struct {
	relay    *MessageRelay
	registry *SessionRegistry
	messages *mocks.MockIMessageRepository
	users    *mocks.MockIUserRepository
}

func newRelayFixture(t *testing.T, moderator *moderation.Moderator) relayFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	registry := NewSessionRegistry()
	messages := mocks.NewMockIMessageRepository(ctrl)
	users := mocks.NewMockIUserRepository(ctrl)
	relay := NewMessageRelay(registry, messages, users, moderator,
		domain.MaxContentLength, slog.Default())
	return relayFixture{relay: relay, registry: registry, messages: messages, users: users}
}

func TestMessageRelay_Online_Recipient_Gets_Exactly_One_Push(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, nil)
	alice, bob := uuid.NewString(), uuid.NewString()
	bobSink := &recordingSink{}
	f.registry.Register(bob, bobSink)

	f.users.EXPECT().UserExists(bob).Return(true, nil)

	// Then storage sees one create with status sent, then one delivered update
	gomock.InOrder(
		f.messages.EXPECT().
			StoreMessage(gomock.Any()).
			DoAndReturn(func(m domain.Message) error {
				req.Equal(domain.StatusSent, m.Status)
				req.Equal("hi", m.Content)
				return nil
			}),
		f.messages.EXPECT().UpdateStatus(gomock.Any(), domain.StatusDelivered).Return(nil),
	)

	// When alice relays a message to a connected bob
	message, err := f.relay.Relay(context.Background(), alice, bob, "hi", domain.TypeText)

	req.NoError(err)
	req.Equal(domain.StatusDelivered, message.Status)
	req.NotEqual(uuid.Nil, message.ID)

	// And bob's session received exactly one push carrying the envelope
	pushes := bobSink.Events()
	req.Len(pushes, 1)
	received := pushes[0].(event.MessageReceived)
	req.Equal(message.ID, received.Message.ID)
}

func TestMessageRelay_Offline_Recipient_Leaves_Status_Sent(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, nil)
	alice, bob := uuid.NewString(), uuid.NewString()

	f.users.EXPECT().UserExists(bob).Return(true, nil)

	// Then exactly one create happens and no status update at all
	f.messages.EXPECT().
		StoreMessage(gomock.Any()).
		DoAndReturn(func(m domain.Message) error {
			req.Equal(domain.StatusSent, m.Status)
			return nil
		}).
		Times(1)
	f.messages.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).Times(0)

	// When bob has no live session
	message, err := f.relay.Relay(context.Background(), alice, bob, "hi", domain.TypeText)

	req.NoError(err)
	req.Equal(domain.StatusSent, message.Status)
}

func TestMessageRelay_Empty_Content_Never_Reaches_Storage(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, nil)

	// Then neither the user check nor the store is ever called
	f.users.EXPECT().UserExists(gomock.Any()).Times(0)
	f.messages.EXPECT().StoreMessage(gomock.Any()).Times(0)

	for _, content := range []string{"", "   ", "\n\t "} {
		_, err := f.relay.Relay(context.Background(),
			uuid.NewString(), uuid.NewString(), content, domain.TypeText)
		req.ErrorIs(err, errors.ErrMalformedContent)
	}
}

func TestMessageRelay_Overlong_Content_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, nil)

	f.messages.EXPECT().StoreMessage(gomock.Any()).Times(0)

	_, err := f.relay.Relay(context.Background(), uuid.NewString(), uuid.NewString(),
		strings.Repeat("x", domain.MaxContentLength+1), domain.TypeText)
	req.ErrorIs(err, errors.ErrMalformedContent)
}

func TestMessageRelay_Unknown_Recipient_Rejected_Before_Persisting(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, nil)
	alice, ghost := uuid.NewString(), uuid.NewString()

	f.users.EXPECT().UserExists(ghost).Return(false, nil)
	f.messages.EXPECT().StoreMessage(gomock.Any()).Times(0)

	_, err := f.relay.Relay(context.Background(), alice, ghost, "hello?", domain.TypeText)
	req.ErrorIs(err, errors.ErrInvalidRecipient)
}

func TestMessageRelay_Storage_Failure_Means_No_Delivery(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, nil)
	alice, bob := uuid.NewString(), uuid.NewString()
	bobSink := &recordingSink{}
	f.registry.Register(bob, bobSink)

	f.users.EXPECT().UserExists(bob).Return(true, nil)
	f.messages.EXPECT().StoreMessage(gomock.Any()).Return(fmt.Errorf("disk full"))

	// When the persist fails
	_, err := f.relay.Relay(context.Background(), alice, bob, "hi", domain.TypeText)

	// Then the failure is transient and nothing was pushed to bob
	req.ErrorIs(err, errors.ErrStorageUnavailable)
	req.Empty(bobSink.Events())
}

// saturatedSink refuses every push, like a session whose buffer is full.
type saturatedSink struct {
	recordingSink
}

func (s *saturatedSink) Consume(context.Context, event.DomainEvent) error {
	return fmt.Errorf("sink buffer full")
}

func TestMessageRelay_Saturated_Recipient_Session_Keeps_Status_Sent(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, nil)
	alice, bob := uuid.NewString(), uuid.NewString()
	bobSink := &saturatedSink{}
	f.registry.Register(bob, bobSink)

	f.users.EXPECT().UserExists(bob).Return(true, nil)

	// Then the message is persisted once as sent and never marked delivered
	f.messages.EXPECT().
		StoreMessage(gomock.Any()).
		DoAndReturn(func(m domain.Message) error {
			req.Equal(domain.StatusSent, m.Status)
			return nil
		}).
		Times(1)
	f.messages.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).Times(0)

	// When bob's session cannot take the push
	message, err := f.relay.Relay(context.Background(), alice, bob, "hi", domain.TypeText)

	// Then the envelope reports sent; delivered would claim a push that
	// never reached the session
	req.NoError(err)
	req.Equal(domain.StatusSent, message.Status)
	req.Empty(bobSink.Events())
}

func TestMessageRelay_Disconnect_During_Relay_Keeps_Status_Sent(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, nil)
	alice, bob := uuid.NewString(), uuid.NewString()
	bobSink := &recordingSink{}
	f.registry.Register(bob, bobSink)

	f.users.EXPECT().UserExists(bob).Return(true, nil)

	// Given bob disconnects between the persist and the push
	f.messages.EXPECT().
		StoreMessage(gomock.Any()).
		DoAndReturn(func(domain.Message) error {
			f.registry.Unregister(bob)
			return nil
		})
	f.messages.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).Times(0)

	// When the relay completes
	message, err := f.relay.Relay(context.Background(), alice, bob, "hi", domain.TypeText)

	// Then the message stays sent and the closed session saw nothing
	req.NoError(err)
	req.Equal(domain.StatusSent, message.Status)
	req.Empty(bobSink.Events())
}

func TestMessageRelay_Delivered_Status_Write_Failure_Is_Logged_Not_Fatal(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, nil)
	alice, bob := uuid.NewString(), uuid.NewString()
	bobSink := &recordingSink{}
	f.registry.Register(bob, bobSink)

	f.users.EXPECT().UserExists(bob).Return(true, nil)
	f.messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)
	f.messages.EXPECT().
		UpdateStatus(gomock.Any(), domain.StatusDelivered).
		Return(fmt.Errorf("transient"))

	// When the delivered write fails after a successful push
	message, err := f.relay.Relay(context.Background(), alice, bob, "hi", domain.TypeText)

	// Then the call still succeeds; the push cannot be retracted
	req.NoError(err)
	req.Equal(domain.StatusDelivered, message.Status)
	req.Len(bobSink.Events(), 1)
}

func TestMessageRelay_Censors_Text_Content(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	req.NoError(err)

	f := newRelayFixture(t, moderator)
	alice, bob := uuid.NewString(), uuid.NewString()

	f.users.EXPECT().UserExists(bob).Return(true, nil)
	f.messages.EXPECT().
		StoreMessage(gomock.Any()).
		DoAndReturn(func(m domain.Message) error {
			req.Equal("the ****** is loose", m.Content)
			return nil
		})

	message, err := f.relay.Relay(context.Background(), alice, bob,
		"the badger is loose", domain.TypeText)
	req.NoError(err)
	req.Equal("the ****** is loose", message.Content)
}
