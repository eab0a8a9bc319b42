package models

import "github.com/google/uuid"

// Profile is the slice of a marketplace user the chat subsystem needs: a
// display name for the conversation header and a contact handle for the
// best-effort notification call. The users table itself is owned elsewhere.
type Profile struct {
	ID       uuid.UUID `json:"id"`
	Nickname string    `json:"nickname"`
	Contact  string    `json:"contact,omitempty"`
}
