package event

import (
	"time"

	"chat-relay/domain"
)

// DomainEvent is anything the core pushes to a live session.
type DomainEvent interface {
	Name() string
}

// MessageReceived carries a freshly relayed message to its recipient.
type MessageReceived struct {
	Message domain.Message
}

func (MessageReceived) Name() string { return "message" }

// PresenceChanged announces an online/offline transition to other sessions.
type PresenceChanged struct {
	UserID   string
	IsOnline bool
	LastSeen time.Time
}

func (PresenceChanged) Name() string { return "presence" }

// TypingStarted tells the receiver that the sender is composing a message.
type TypingStarted struct {
	SenderID   string
	ReceiverID string
}

func (TypingStarted) Name() string { return "typing" }

// TypingStopped clears a previously pushed typing indicator.
type TypingStopped struct {
	SenderID   string
	ReceiverID string
}

func (TypingStopped) Name() string { return "stop_typing" }
