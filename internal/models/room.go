package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is a two-party conversation anchored to a ticket order or, before an
// order exists, to the listing post itself.
type Room struct {
	ID          uuid.UUID `json:"id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	OrderNumber string    `json:"order_number,omitempty"`
	PostID      string    `json:"post_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Anchor identifies the conversation a caller wants to open. Exactly one of
// the two fields should be set; OrderNumber wins when both are.
type Anchor struct {
	OrderNumber string `json:"order_number,omitempty"`
	PostID      string `json:"post_id,omitempty"`
}

// IsZero reports whether the anchor carries no key at all.
func (a Anchor) IsZero() bool {
	return a.OrderNumber == "" && a.PostID == ""
}

// OtherParty returns the participant that is not userID. The second return is
// false when userID is neither the buyer nor the seller.
func (r *Room) OtherParty(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case r.BuyerID:
		return r.SellerID, true
	case r.SellerID:
		return r.BuyerID, true
	}
	return uuid.Nil, false
}
