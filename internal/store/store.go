package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/letsssss/naver-real-sub000/internal/models"
)

// DataStore defines the interface for persistent storage of rooms and
// messages. Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Room operations. UpsertRoom is keyed by the natural anchor (order
	// number, or post+buyer pair) so resolving the same anchor twice always
	// yields the same room row.
	UpsertRoom(ctx context.Context, room models.Room) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)

	// Marketplace lookups (tables owned by the listing/order subsystems).
	GetOrderParties(ctx context.Context, orderNumber string) (buyer, seller uuid.UUID, err error)
	GetListingSeller(ctx context.Context, postID string) (uuid.UUID, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)

	// Message operations. InsertMessage is idempotent on client_id: retrying
	// the same logical send returns the already-stored row.
	InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	ListMessages(ctx context.Context, roomID uuid.UUID) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, roomID uuid.UUID, ids []string) (int64, error)
	CountUnread(ctx context.Context, roomID uuid.UUID, recipientID uuid.UUID) (int, error)
}

// Subscription is a live feed of change events for one room.
type Subscription interface {
	// Events yields insert/update events in arrival order.
	Events() <-chan models.ChatEvent
	// States yields connection-health transitions.
	States() <-chan models.ConnState
	Close() error
}

// EventBus is the push side of the backend: change events fan out to every
// subscriber of a room, and per-user unread counters are kept hot for badge
// queries. RedisStore implements this interface.
type EventBus interface {
	Ping(ctx context.Context) error
	PublishEvent(ctx context.Context, ev models.ChatEvent) error
	Subscribe(ctx context.Context, roomID uuid.UUID) (Subscription, error)

	IncrUnread(ctx context.Context, roomID, userID uuid.UUID) error
	ResetUnread(ctx context.Context, roomID, userID uuid.UUID) error
	GetUnread(ctx context.Context, roomID, userID uuid.UUID) (int, error)
}
