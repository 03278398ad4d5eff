//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	UpdateStatus(id uuid.UUID, status domain.DeliveryStatus) error
	GetConversation(userA, userB string, cursor *string) ([]domain.Message, *string, error)
	CountUnread(userID string) (int, error)
	Contacts(userID string) ([]string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// messageRecord is the JSON document persisted for each message.
type messageRecord struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	At       int64  `json:"at"`
}

// conversationKey joins both user ids in lexical order so that A->B and B->A
// messages land under the same prefix.
func conversationKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// messageKey formats the primary key as "msg:{pair}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func messageKey(message domain.Message) string {
	return fmt.Sprintf("msg:%s:%019d:%s",
		conversationKey(message.SenderID, message.ReceiverID),
		message.CreatedAt.UnixNano(),
		message.ID,
	)
}

func locatorKey(id uuid.UUID) []byte { return []byte("msgid:" + id.String()) }

func unreadKey(receiverID string, id uuid.UUID) []byte {
	return []byte("unread:" + receiverID + ":" + id.String())
}

func contactKey(userID, peerID string) []byte {
	return []byte("conv:" + userID + ":" + peerID)
}

// StoreMessage persists a message plus its secondary entries in one transaction:
// a locator for status updates by id, an unread marker for the receiver,
// and a contact marker in both directions for presence scoping.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	key := []byte(messageKey(message))
	bytes, err := json.Marshal(toRecord(message))
	if err != nil {
		return err
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		if err := txn.Set(locatorKey(message.ID), key); err != nil {
			return err
		}
		if err := txn.Set(unreadKey(message.ReceiverID, message.ID), key); err != nil {
			return err
		}
		if err := txn.Set(contactKey(message.SenderID, message.ReceiverID), nil); err != nil {
			return err
		}
		return txn.Set(contactKey(message.ReceiverID, message.SenderID), nil)
	})
}

// UpdateStatus advances the delivery status of a stored message.
// Only forward transitions are accepted (sent -> delivered -> read).
// Reaching "read" also clears the receiver's unread marker.
func (m MessageRepository) UpdateStatus(id uuid.UUID, status domain.DeliveryStatus) error {
	return m.db.Update(func(txn *badger.Txn) error {
		locator, err := txn.Get(locatorKey(id))
		if err == badger.ErrKeyNotFound {
			return errors.ErrMessageNotFound
		}
		if err != nil {
			return err
		}

		key, err := locator.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		var record messageRecord
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return err
		}

		current := domain.DeliveryStatus(record.Status)
		if !current.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", errors.ErrIllegalStatusChange, current, status)
		}
		record.Status = string(status)

		bytes, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err = txn.Set(key, bytes); err != nil {
			return err
		}

		if status == domain.StatusRead {
			return txn.Delete(unreadKey(record.Receiver, id))
		}
		return nil
	})
}

// GetConversation retrieves messages between two users using a reverse prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted by time;
// reverse iteration yields newest first. The returned cursor resumes the scan on
// the next page. It stops collecting once the configured limitMessages is reached.
func (m MessageRepository) GetConversation(userA, userB string, cursor *string) ([]domain.Message, *string, error) {
	var rawMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversationKey(userA, userB))
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(rawMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// An exhausted scan returns no cursor, which tells the client to stop paging.
	if len(rawMessages) == 0 {
		return nil, nil, nil
	}

	var messages []domain.Message
	for _, raw := range rawMessages {
		var record messageRecord
		if err = json.Unmarshal(raw, &record); err != nil {
			return nil, nil, err
		}
		message, err := fromRecord(record)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, &lastKey, nil
}

// CountUnread counts messages the user has not read yet via a key-only prefix scan.
func (m MessageRepository) CountUnread(userID string) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte("unread:" + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Contacts lists every user the given user shares a conversation with.
func (m MessageRepository) Contacts(userID string) ([]string, error) {
	var contacts []string
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefixStr := "conv:" + userID + ":"
		prefix := []byte(prefixStr)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			contacts = append(contacts, strings.TrimPrefix(string(it.Item().Key()), prefixStr))
		}
		return nil
	})
	return contacts, err
}

func toRecord(message domain.Message) messageRecord {
	return messageRecord{
		ID:       message.ID.String(),
		Sender:   message.SenderID,
		Receiver: message.ReceiverID,
		Content:  message.Content,
		Type:     string(message.Type),
		Status:   string(message.Status),
		At:       message.CreatedAt.UnixNano(),
	}
}

func fromRecord(record messageRecord) (domain.Message, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         parsedID,
		SenderID:   record.Sender,
		ReceiverID: record.Receiver,
		Content:    record.Content,
		Type:       domain.ParseMessageType(record.Type),
		Status:     domain.DeliveryStatus(lo.Ternary(record.Status != "", record.Status, string(domain.StatusSent))),
		CreatedAt:  time.Unix(0, record.At).UTC(),
	}, nil
}
