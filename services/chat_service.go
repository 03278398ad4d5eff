package services

import (
	"context"

	"chat-relay/domain"
	"chat-relay/repositories"
	"chat-relay/runtime"
)

// IChatService is the surface the transport layer talks to: one call per
// inbound connection event, plus the history reads the REST handlers serve.
type IChatService interface {
	Send(ctx context.Context, senderID, receiverID, content string, msgType domain.MessageType) (domain.Message, error)
	Typing(senderID, receiverID string)
	StopTyping(senderID, receiverID string)
	History(userA, userB string, cursor *string) ([]domain.Message, *string, error)
	Unread(userID string) (int, error)
}

type ChatService struct {
	relay    *runtime.MessageRelay
	typing   *runtime.TypingNotifier
	messages repositories.IMessageRepository
}

func NewChatService(relay *runtime.MessageRelay, typing *runtime.TypingNotifier,
	messages repositories.IMessageRepository) *ChatService {
	return &ChatService{relay: relay, typing: typing, messages: messages}
}

func (s *ChatService) Send(ctx context.Context, senderID, receiverID, content string, msgType domain.MessageType) (domain.Message, error) {
	return s.relay.Relay(ctx, senderID, receiverID, content, msgType)
}

func (s *ChatService) Typing(senderID, receiverID string) {
	s.typing.NotifyTyping(senderID, receiverID)
}

func (s *ChatService) StopTyping(senderID, receiverID string) {
	s.typing.NotifyStopTyping(senderID, receiverID)
}

func (s *ChatService) History(userA, userB string, cursor *string) ([]domain.Message, *string, error) {
	return s.messages.GetConversation(userA, userB, cursor)
}

func (s *ChatService) Unread(userID string) (int, error) {
	return s.messages.CountUnread(userID)
}
