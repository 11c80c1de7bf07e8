package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents one chat turn. ID is the server id once persisted; until
// then it holds a locally generated placeholder that is replaced in place.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Timestamp time.Time
}

const (
	tempIDPrefix  = "temp-"
	guestIDPrefix = "guest-"
)

// NewPlaceholderID returns a temporary message id for an optimistic append.
func NewPlaceholderID() string {
	return tempIDPrefix + uuid.NewString()
}

// NewGuestID returns a message id for guest-mode messages, which are never
// acknowledged by the server.
func NewGuestID() string {
	return guestIDPrefix + uuid.NewString()
}

// IsPlaceholderID reports whether id was generated locally.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix) || strings.HasPrefix(id, guestIDPrefix)
}
