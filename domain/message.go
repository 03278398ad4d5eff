// Package domain contains core concepts of the relay system.
// This file defines Message envelopes and their validation rules.
// Messages are immutable once persisted, except for their delivery status.
package domain

import (
	"strings"
	"time"

	"chat-relay/errors"

	"github.com/google/uuid"
)

// MessageType qualifies the payload carried by a message.
// Image and file messages carry opaque content (typically a URL);
// the upload pipeline itself lives outside this system.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeFile  MessageType = "file"
)

// ParseMessageType maps a raw string to a MessageType, defaulting to text.
func ParseMessageType(raw string) MessageType {
	switch MessageType(raw) {
	case TypeImage:
		return TypeImage
	case TypeFile:
		return TypeFile
	default:
		return TypeText
	}
}

// DeliveryStatus tracks how far a message has travelled.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

// CanTransitionTo enforces the one-way sent -> delivered -> read progression.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	switch s {
	case StatusSent:
		return next == StatusDelivered || next == StatusRead
	case StatusDelivered:
		return next == StatusRead
	default:
		return false
	}
}

// MaxContentLength is the upper bound on message content, in runes.
const MaxContentLength = 5000

// Message represents one chat message between two users.
type Message struct {
	ID         uuid.UUID
	SenderID   string
	ReceiverID string
	Content    string
	Type       MessageType
	Status     DeliveryStatus
	CreatedAt  time.Time
}

// ValidateContent trims the content and rejects empty or over-length payloads.
// It returns the trimmed content ready for persistence.
func ValidateContent(content string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errors.ErrMalformedContent
	}
	if len([]rune(trimmed)) > maxLength {
		return "", errors.ErrMalformedContent
	}
	return trimmed, nil
}
