// Package domain contains core concepts of the relay system.
// This file defines the authenticated Identity attached to a connection.
// An Identity never changes for the lifetime of its connection.
package domain

// Identity is the authenticated user behind a live connection.
type Identity struct {
	UserID   string
	Username string
}
