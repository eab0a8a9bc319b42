package chat

import "errors"

// Error taxonomy for the chat subsystem. Callers branch with errors.Is; the
// HTTP layer maps these to status codes.
var (
	// ErrAuthRequired means no identity is available yet. Callers should
	// defer and re-invoke once the user is known, not retry in a loop.
	ErrAuthRequired = errors.New("chat: authentication required")

	// ErrInit wraps a failed backend connection during EnsureReady.
	ErrInit = errors.New("chat: initialization failed")

	// ErrRoomNotFound means the anchor did not resolve to a valid
	// conversation (unknown order, listing without a seller).
	ErrRoomNotFound = errors.New("chat: room not found")

	// ErrNotParticipant means the current user is neither buyer nor seller
	// for the anchor.
	ErrNotParticipant = errors.New("chat: not a participant")

	// ErrEmptyMessage rejects whitespace-only content before any network
	// call.
	ErrEmptyMessage = errors.New("chat: empty message")

	// ErrSendFailed means every attempt of the backoff schedule failed. The
	// message stays in the cache marked failed; the room remains usable.
	ErrSendFailed = errors.New("chat: send failed")

	// ErrClosed means the service or room session has been disposed.
	ErrClosed = errors.New("chat: closed")

	// ErrRoomNotOpen means an operation needs an open room session.
	ErrRoomNotOpen = errors.New("chat: room not open")
)
