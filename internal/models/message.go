package models

import "github.com/google/uuid"

// SendStatus tracks a locally originated message until the backend confirms
// it. Messages that materialize from remote events are always "sent".
type SendStatus string

const (
	SendSending SendStatus = "sending"
	SendSent    SendStatus = "sent"
	SendFailed  SendStatus = "failed"
)

// Message is a chat message within a room.
type Message struct {
	ID       string    `json:"id"` // ULID
	RoomID   uuid.UUID `json:"room_id"`
	SenderID uuid.UUID `json:"sender_id"`
	Content  string    `json:"content"`
	// ClientID correlates an optimistic local entry with its authoritative
	// remote copy. Generated before the first network attempt and reused
	// across retries so the write is idempotent.
	ClientID  string     `json:"client_id,omitempty"`
	IsRead    bool       `json:"is_read"`
	Timestamp int64      `json:"ts"` // Unix ms
	Status    SendStatus `json:"status,omitempty"`
}

// Pending reports whether the message is an unconfirmed optimistic entry.
func (m *Message) Pending() bool {
	return m.Status == SendSending
}

// Before orders messages by creation time, breaking ties on the ULID so the
// order is total.
func (m *Message) Before(other *Message) bool {
	if m.Timestamp != other.Timestamp {
		return m.Timestamp < other.Timestamp
	}
	return m.ID < other.ID
}
