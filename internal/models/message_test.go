package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestMessageBefore(t *testing.T) {
	a := Message{ID: "01A", Timestamp: 100}
	b := Message{ID: "01B", Timestamp: 200}
	if !a.Before(&b) || b.Before(&a) {
		t.Fatal("earlier timestamp must order first")
	}

	// Same millisecond falls back to the id, so the order stays total.
	c := Message{ID: "01A", Timestamp: 100}
	d := Message{ID: "01B", Timestamp: 100}
	if !c.Before(&d) || d.Before(&c) {
		t.Fatal("equal timestamps must break ties on id")
	}
}

func TestMessagePending(t *testing.T) {
	msg := Message{Status: SendSending}
	if !msg.Pending() {
		t.Fatal("sending message should be pending")
	}
	for _, status := range []SendStatus{SendSent, SendFailed, ""} {
		msg.Status = status
		if msg.Pending() {
			t.Fatalf("status %q should not be pending", status)
		}
	}
}

func TestRoomOtherParty(t *testing.T) {
	buyer, seller, stranger := uuid.New(), uuid.New(), uuid.New()
	room := Room{BuyerID: buyer, SellerID: seller}

	if other, ok := room.OtherParty(buyer); !ok || other != seller {
		t.Fatal("buyer's counterparty should be the seller")
	}
	if other, ok := room.OtherParty(seller); !ok || other != buyer {
		t.Fatal("seller's counterparty should be the buyer")
	}
	if _, ok := room.OtherParty(stranger); ok {
		t.Fatal("non-participant must not resolve a counterparty")
	}
}

func TestAnchorIsZero(t *testing.T) {
	if !(Anchor{}).IsZero() {
		t.Fatal("empty anchor should be zero")
	}
	if (Anchor{OrderNumber: "ORD-1"}).IsZero() || (Anchor{PostID: "P-1"}).IsZero() {
		t.Fatal("anchor with a key should not be zero")
	}
}
