//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(username, hashedPassword string) (string, error)
	GetUserByUsername(username string) (User, error)
	UserExists(userID string) (bool, error)
	UpdatePresence(userID string, isOnline bool, lastSeen time.Time) error
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository-level representation of an account,
// including its last persisted presence state.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	IsOnline     bool
	LastSeen     time.Time
}

type userRecord struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
	IsOnline     bool   `json:"is_online"`
	LastSeen     int64  `json:"last_seen"`
}

func userKey(username string) []byte { return []byte("user:" + username) }

// userIDKey locates the username owning a user id, for id-based lookups.
func userIDKey(id string) []byte { return []byte("userid:" + id) }

// CreateUser persists a new account and returns the generated user ID.
// The password must already be hashed by the caller.
func (u UserRepository) CreateUser(username, hashedPassword string) (string, error) {
	newID := uuid.New().String()
	record := userRecord{
		ID:           newID,
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().Unix(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := userKey(username)
		if _, err = txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err = txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(userIDKey(newID), []byte(username))
	})

	return newID, err
}

// GetUserByUsername retrieves a user and converts it to the repository.User struct.
func (u UserRepository) GetUserByUsername(username string) (User, error) {
	var record userRecord

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err // Will be handled as ErrInvalidCredentials upstream
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return User{}, err
	}

	return toUser(record), nil
}

// UserExists reports whether a user id belongs to a known account.
func (u UserRepository) UserExists(userID string) (bool, error) {
	err := u.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(userIDKey(userID))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdatePresence persists the online flag and last-seen timestamp of a user.
func (u UserRepository) UpdatePresence(userID string, isOnline bool, lastSeen time.Time) error {
	return u.db.Update(func(txn *badger.Txn) error {
		locator, err := txn.Get(userIDKey(userID))
		if err != nil {
			return err
		}
		username, err := locator.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err := txn.Get(userKey(string(username)))
		if err != nil {
			return err
		}

		var record userRecord
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return err
		}

		record.IsOnline = isOnline
		record.LastSeen = lastSeen.Unix()

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(userKey(string(username)), data)
	})
}

func toUser(record userRecord) User {
	return User{
		ID:           record.ID,
		Username:     record.Username,
		PasswordHash: record.PasswordHash,
		CreatedAt:    time.Unix(record.CreatedAt, 0).UTC(),
		IsOnline:     record.IsOnline,
		LastSeen:     time.Unix(record.LastSeen, 0).UTC(),
	}
}
