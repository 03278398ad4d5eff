package repositories

import (
	"testing"
	"time"

	"chat-relay/errors"

	"github.com/stretchr/testify/require"
)

func Test_Create_And_Fetch_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	id, err := repository.CreateUser("alice", "hashed-secret")
	req.NoError(err)
	req.NotEmpty(id)

	user, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("alice", user.Username)
	req.Equal("hashed-secret", user.PasswordHash)
	req.False(user.IsOnline)
}

func Test_Create_Duplicate_Username_Rejected(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("alice", "hash-one")
	req.NoError(err)

	_, err = repository.CreateUser("alice", "hash-two")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_UserExists_By_ID(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	id, err := repository.CreateUser("alice", "hash")
	req.NoError(err)

	exists, err := repository.UserExists(id)
	req.NoError(err)
	req.True(exists)

	exists, err = repository.UserExists("not-an-id")
	req.NoError(err)
	req.False(exists)
}

func Test_Update_Presence_Round_Trips(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	id, err := repository.CreateUser("alice", "hash")
	req.NoError(err)

	lastSeen := time.Now().UTC().Truncate(time.Second)
	req.NoError(repository.UpdatePresence(id, true, lastSeen))

	user, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.True(user.IsOnline)
	req.Equal(lastSeen, user.LastSeen)

	req.NoError(repository.UpdatePresence(id, false, lastSeen.Add(time.Minute)))
	user, err = repository.GetUserByUsername("alice")
	req.NoError(err)
	req.False(user.IsOnline)
}
