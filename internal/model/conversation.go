// Package model defines data structures shared by the chat client.
package model

import (
	"strconv"
	"time"
)

// ConversationID identifies a conversation. Server-backed conversations carry
// a remote integer id; conversations that only exist on this client carry a
// locally generated token. Keeping the two in one tagged value prevents call
// sites from sending a local-only id to a server endpoint.
type ConversationID struct {
	remote int64
	local  string
}

// RemoteID builds an id for a server-backed conversation.
func RemoteID(n int64) ConversationID {
	return ConversationID{remote: n}
}

// LocalID builds an id for a client-only conversation.
func LocalID(token string) ConversationID {
	return ConversationID{local: token}
}

// IsZero reports whether no conversation is identified.
func (id ConversationID) IsZero() bool {
	return id.remote == 0 && id.local == ""
}

// Remote returns the server id and whether this id is server-backed.
func (id ConversationID) Remote() (int64, bool) {
	return id.remote, id.remote != 0
}

// Local returns the local token and whether this id is client-only.
func (id ConversationID) Local() (string, bool) {
	return id.local, id.local != ""
}

func (id ConversationID) String() string {
	if id.remote != 0 {
		return strconv.FormatInt(id.remote, 10)
	}
	return id.local
}

// Conversation represents one chat thread.
type Conversation struct {
	ID        ConversationID
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time

	// Server summary fields for list rendering without full message bodies.
	MessageCount int
	LastMessage  string
}

// Group is one bucket of the sidebar view, e.g. "Today". Conversations are
// detached copies, safe to read after the store moves on.
type Group struct {
	Label         string
	Conversations []Conversation
}
