package ws

import (
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/samber/lo"
)

// ClientFrame is what a connected client sends over the socket.
type ClientFrame struct {
	Action     string `json:"action"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Content    string `json:"content,omitempty"`
	Type       string `json:"type,omitempty"`
}

// Client actions.
const (
	ActionSendMessage = "send_message"
	ActionTyping      = "typing"
	ActionStopTyping  = "stop_typing"
)

// ServerFrame is what the server pushes over the socket.
type ServerFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Server-only event names (domain events reuse their own Name()).
const (
	eventMessageSent   = "message_sent"
	eventPresenceState = "presence_state"
	eventError         = "error"
)

type messagePayload struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type presencePayload struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

type typingPayload struct {
	SenderID string `json:"sender_id"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toMessagePayload(m domain.Message) messagePayload {
	return messagePayload{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Type:       string(m.Type),
		Status:     string(m.Status),
		CreatedAt:  m.CreatedAt,
	}
}

// toServerFrame maps a pushed domain event onto its wire representation.
func toServerFrame(evt event.DomainEvent) ServerFrame {
	switch e := evt.(type) {
	case event.MessageReceived:
		return ServerFrame{Event: e.Name(), Data: toMessagePayload(e.Message)}
	case event.PresenceChanged:
		return ServerFrame{Event: e.Name(), Data: presencePayload{
			UserID: e.UserID, IsOnline: e.IsOnline, LastSeen: e.LastSeen,
		}}
	case event.TypingStarted:
		return ServerFrame{Event: e.Name(), Data: typingPayload{SenderID: e.SenderID}}
	case event.TypingStopped:
		return ServerFrame{Event: e.Name(), Data: typingPayload{SenderID: e.SenderID}}
	default:
		return ServerFrame{Event: evt.Name()}
	}
}

func ackFrame(m domain.Message) ServerFrame {
	return ServerFrame{Event: eventMessageSent, Data: toMessagePayload(m)}
}

func presenceStateFrame(states []domain.Presence) ServerFrame {
	return ServerFrame{Event: eventPresenceState, Data: lo.Map(states,
		func(p domain.Presence, _ int) presencePayload {
			return presencePayload{UserID: p.UserID, IsOnline: p.IsOnline, LastSeen: p.LastSeen}
		})}
}

func errorFrame(err error) ServerFrame {
	return ServerFrame{Event: eventError, Data: errorPayload{
		Code:    errors.MapToWireCode(err),
		Message: err.Error(),
	}}
}
