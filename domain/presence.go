package domain

import "time"

// Presence is a user's online flag and last-seen timestamp.
// It is mutated exactly twice per connection: on connect and on disconnect.
type Presence struct {
	UserID   string
	IsOnline bool
	LastSeen time.Time
}
