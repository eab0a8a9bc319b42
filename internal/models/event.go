package models

// EventKind discriminates realtime change events for a room.
type EventKind string

const (
	// EventInserted is published when a new message row is written.
	EventInserted EventKind = "message.inserted"
	// EventUpdated is published when an existing row changes, in practice a
	// read-flag flip.
	EventUpdated EventKind = "message.updated"
	// EventConnection is synthesized locally when the realtime channel
	// changes health. It is never published to the backend.
	EventConnection EventKind = "connection.changed"
)

// ChatEvent is a typed change event delivered over the realtime channel.
type ChatEvent struct {
	Kind    EventKind `json:"kind"`
	Message Message   `json:"message,omitempty"`
	State   string    `json:"state,omitempty"` // set for EventConnection only
}

// ConnState is the health of a room's realtime subscription.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnected
	ConnReconnecting
)

func (s ConnState) String() string {
	switch s {
	case ConnConnected:
		return "connected"
	case ConnReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}
