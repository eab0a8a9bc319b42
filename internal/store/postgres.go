package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/letsssss/naver-real-sub000/internal/metrics"
	"github.com/letsssss/naver-real-sub000/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertRoom finds or creates the room for the given anchor. The conflict
// target is the natural key, so concurrent resolution of the same anchor
// converges on one row. The orders and posts tables are not touched here.
func (s *PostgresStore) UpsertRoom(ctx context.Context, room models.Room) (*models.Room, error) {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}

	query := `
		INSERT INTO chat_rooms (id, buyer_id, seller_id, order_number, post_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_number) WHERE order_number IS NOT NULL
		DO UPDATE SET order_number = EXCLUDED.order_number
		RETURNING id, buyer_id, seller_id, order_number, post_id, created_at
	`
	if room.OrderNumber == "" {
		query = `
		INSERT INTO chat_rooms (id, buyer_id, seller_id, order_number, post_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (post_id, buyer_id) WHERE post_id IS NOT NULL
		DO UPDATE SET post_id = EXCLUDED.post_id
		RETURNING id, buyer_id, seller_id, order_number, post_id, created_at
	`
	}

	out := &models.Room{}
	var orderNumber, postID *string
	err := s.pool.QueryRow(ctx, query,
		room.ID, room.BuyerID, room.SellerID,
		nullable(room.OrderNumber), nullable(room.PostID),
	).Scan(
		&out.ID,
		&out.BuyerID,
		&out.SellerID,
		&orderNumber,
		&postID,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	out.OrderNumber = deref(orderNumber)
	out.PostID = deref(postID)
	return out, nil
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room := &models.Room{}
	var orderNumber, postID *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, buyer_id, seller_id, order_number, post_id, created_at
		FROM chat_rooms WHERE id = $1
	`, id).Scan(
		&room.ID,
		&room.BuyerID,
		&room.SellerID,
		&orderNumber,
		&postID,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	room.OrderNumber = deref(orderNumber)
	room.PostID = deref(postID)
	return room, nil
}

// GetOrderParties retrieves the buyer and seller of an order. Returns zero
// UUIDs when the order does not exist.
func (s *PostgresStore) GetOrderParties(ctx context.Context, orderNumber string) (uuid.UUID, uuid.UUID, error) {
	var buyer, seller uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT buyer_id, seller_id FROM orders WHERE order_number = $1
	`, orderNumber).Scan(&buyer, &seller)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, nil
		}
		return uuid.Nil, uuid.Nil, err
	}
	return buyer, seller, nil
}

// GetListingSeller retrieves the seller of a listing post. Returns a zero
// UUID when the post does not exist or has no recorded seller.
func (s *PostgresStore) GetListingSeller(ctx context.Context, postID string) (uuid.UUID, error) {
	var seller *uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT seller_id FROM posts WHERE id = $1
	`, postID).Scan(&seller)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	if seller == nil {
		return uuid.Nil, nil
	}
	return *seller, nil
}

// GetProfile retrieves a user's display name and contact handle.
func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	profile := &models.Profile{}
	var contact *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, nickname, contact FROM users WHERE id = $1
	`, id).Scan(&profile.ID, &profile.Nickname, &contact)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	profile.Contact = deref(contact)
	return profile, nil
}

// InsertMessage persists a message. The conflict target is client_id, so a
// retried send returns the row the first successful attempt created instead
// of duplicating it.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	start := time.Now()
	defer func() {
		metrics.PostgresLatency.Observe(time.Since(start).Seconds())
	}()

	out := &models.Message{Status: models.SendSent}
	var clientID *string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (id, room_id, sender_id, content, client_id, is_read, ts)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (client_id) WHERE client_id IS NOT NULL
		DO UPDATE SET client_id = EXCLUDED.client_id
		RETURNING id, room_id, sender_id, content, client_id, is_read, ts
	`, msg.ID, msg.RoomID, msg.SenderID, msg.Content, nullable(msg.ClientID), msg.Timestamp).Scan(
		&out.ID,
		&out.RoomID,
		&out.SenderID,
		&out.Content,
		&clientID,
		&out.IsRead,
		&out.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	out.ClientID = deref(clientID)
	return out, nil
}

// ListMessages retrieves all messages in a room in ascending creation order.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	start := time.Now()
	defer func() {
		metrics.PostgresLatency.Observe(time.Since(start).Seconds())
	}()

	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, sender_id, content, client_id, is_read, ts
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY ts ASC, id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var clientID *string
		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.SenderID,
			&msg.Content,
			&clientID,
			&msg.IsRead,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		msg.ClientID = deref(clientID)
		msg.Status = models.SendSent
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// MarkMessagesRead flips is_read on the given messages. Already-read rows are
// untouched, which keeps the flag monotonic. Returns the number of rows that
// actually changed.
func (s *PostgresStore) MarkMessagesRead(ctx context.Context, roomID uuid.UUID, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_messages
		SET is_read = TRUE
		WHERE room_id = $1 AND id = ANY($2) AND is_read = FALSE
	`, roomID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUnread counts messages addressed to recipientID that are still unread.
func (s *PostgresStore) CountUnread(ctx context.Context, roomID uuid.UUID, recipientID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_messages
		WHERE room_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, roomID, recipientID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
