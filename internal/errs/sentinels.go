// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrTransport indicates the service could not be reached at all.
	ErrTransport = errors.New("could not reach the service")

	// ErrUnauthorized indicates the server rejected the request for lack of a valid credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested entity does not exist on the server.
	ErrNotFound = errors.New("not found")

	// ErrRefreshFailed indicates the refresh token was rejected; the token session is over.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNoConversation indicates the store has no current conversation for the operation.
	ErrNoConversation = errors.New("no current conversation")

	// ErrLocalConversation indicates a server operation was attempted on a local-only conversation.
	ErrLocalConversation = errors.New("conversation is local only")
)
