package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/repositories"

	"github.com/google/uuid"
)

// MessageRelay persists an outbound message and forwards it to the
// recipient's live session when one exists.
//
// Persistence always precedes delivery: a message that failed to reach
// storage is never pushed, so only messages that exist in storage are ever
// delivered. Per sender/receiver pair, ordering follows call order since
// the persist and push of one call happen sequentially.
type MessageRelay struct {
	registry  contract.ISessionRegistry
	messages  repositories.IMessageRepository
	users     repositories.IUserRepository
	moderator *moderation.Moderator
	maxLength int
	log       *slog.Logger
}

func NewMessageRelay(registry contract.ISessionRegistry,
	messages repositories.IMessageRepository, users repositories.IUserRepository,
	moderator *moderation.Moderator, maxLength int, log *slog.Logger) *MessageRelay {
	return &MessageRelay{
		registry:  registry,
		messages:  messages,
		users:     users,
		moderator: moderator,
		maxLength: maxLength,
		log:       log,
	}
}

// Relay validates, persists and forwards one message from an authenticated,
// registered sender. The returned envelope carries the assigned id so the
// sender can reconcile any optimistic local copy, and the final delivery
// status ("delivered" when the recipient's session took the push, "sent"
// otherwise).
func (r *MessageRelay) Relay(ctx context.Context, senderID, receiverID, content string, msgType domain.MessageType) (domain.Message, error) {
	// Reject malformed content before touching storage.
	trimmed, err := domain.ValidateContent(content, r.maxLength)
	if err != nil {
		return domain.Message{}, err
	}

	// Reject unknown recipients before persisting anything.
	exists, err := r.users.UserExists(receiverID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}
	if !exists {
		return domain.Message{}, errors.ErrInvalidRecipient
	}

	if r.moderator != nil && msgType == domain.TypeText {
		trimmed = r.moderator.Censor(trimmed)
	}

	message := domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    trimmed,
		Type:       msgType,
		Status:     domain.StatusSent,
		CreatedAt:  time.Now().UTC(),
	}

	if err = r.messages.StoreMessage(message); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}

	// The lookup happens after persistence; a recipient that disconnected
	// in the meantime simply leaves the message at "sent" for later
	// retrieval through conversation history.
	sink, online := r.registry.Lookup(receiverID)
	if !online {
		return message, nil
	}

	if err = sink.Consume(ctx, event.MessageReceived{Message: message}); err != nil {
		r.log.Warn("Push to recipient session failed, message stays sent",
			"message_id", message.ID, "receiver_id", receiverID, "error", err)
		return message, nil
	}

	message.Status = domain.StatusDelivered
	if err = r.messages.UpdateStatus(message.ID, domain.StatusDelivered); err != nil {
		// The push already happened and cannot be retracted; the status
		// converges when the recipient fetches history.
		r.log.Warn("Delivered status write failed",
			"message_id", message.ID, "error", err)
	}
	return message, nil
}
