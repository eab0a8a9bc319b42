package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/letsssss/naver-real-sub000/internal/models"
)

// SQLiteStore handles SQLite database operations for local development and
// single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chat_rooms (
	id           TEXT PRIMARY KEY,
	buyer_id     TEXT NOT NULL,
	seller_id    TEXT NOT NULL,
	order_number TEXT,
	post_id      TEXT,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_order_key
	ON chat_rooms (order_number) WHERE order_number IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_post_buyer_key
	ON chat_rooms (post_id, buyer_id) WHERE post_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS chat_messages (
	id        TEXT PRIMARY KEY,
	room_id   TEXT NOT NULL REFERENCES chat_rooms(id),
	sender_id TEXT NOT NULL,
	content   TEXT NOT NULL,
	client_id TEXT,
	is_read   BOOLEAN NOT NULL DEFAULT FALSE,
	ts        INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS chat_messages_client_key
	ON chat_messages (client_id) WHERE client_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS chat_messages_room_ts
	ON chat_messages (room_id, ts);

CREATE TABLE IF NOT EXISTS orders (
	order_number TEXT PRIMARY KEY,
	buyer_id     TEXT NOT NULL,
	seller_id    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id        TEXT PRIMARY KEY,
	seller_id TEXT
);

CREATE TABLE IF NOT EXISTS users (
	id       TEXT PRIMARY KEY,
	nickname TEXT NOT NULL,
	contact  TEXT
);
`

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db".
// Unlike the Postgres store, the marketplace reference tables (orders, posts,
// users) are created here too so a dev instance works standalone.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertRoom finds or creates the room for the given anchor inside a
// transaction, so repeated resolution converges on one row.
func (s *SQLiteStore) UpsertRoom(ctx context.Context, room models.Room) (*models.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var row *sql.Row
	if room.OrderNumber != "" {
		row = tx.QueryRowContext(ctx, `
			SELECT id, buyer_id, seller_id, order_number, post_id, created_at
			FROM chat_rooms WHERE order_number = ?
		`, room.OrderNumber)
	} else {
		row = tx.QueryRowContext(ctx, `
			SELECT id, buyer_id, seller_id, order_number, post_id, created_at
			FROM chat_rooms WHERE post_id = ? AND buyer_id = ?
		`, room.PostID, room.BuyerID.String())
	}

	existing, err := scanSQLiteRoom(row)
	if err == nil {
		return existing, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_rooms (id, buyer_id, seller_id, order_number, post_id)
		VALUES (?, ?, ?, ?, ?)
	`, room.ID.String(), room.BuyerID.String(), room.SellerID.String(),
		nullable(room.OrderNumber), nullable(room.PostID))
	if err != nil {
		return nil, err
	}

	created := tx.QueryRowContext(ctx, `
		SELECT id, buyer_id, seller_id, order_number, post_id, created_at
		FROM chat_rooms WHERE id = ?
	`, room.ID.String())
	out, err := scanSQLiteRoom(created)
	if err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, seller_id, order_number, post_id, created_at
		FROM chat_rooms WHERE id = ?
	`, id.String())
	room, err := scanSQLiteRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// GetOrderParties retrieves the buyer and seller of an order.
func (s *SQLiteStore) GetOrderParties(ctx context.Context, orderNumber string) (uuid.UUID, uuid.UUID, error) {
	var buyerStr, sellerStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT buyer_id, seller_id FROM orders WHERE order_number = ?
	`, orderNumber).Scan(&buyerStr, &sellerStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, uuid.Nil, nil
		}
		return uuid.Nil, uuid.Nil, err
	}

	buyer, err := uuid.Parse(buyerStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	seller, err := uuid.Parse(sellerStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return buyer, seller, nil
}

// GetListingSeller retrieves the seller of a listing post.
func (s *SQLiteStore) GetListingSeller(ctx context.Context, postID string) (uuid.UUID, error) {
	var seller *string
	err := s.db.QueryRowContext(ctx, `
		SELECT seller_id FROM posts WHERE id = ?
	`, postID).Scan(&seller)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	if seller == nil || *seller == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(*seller)
}

// GetProfile retrieves a user's display name and contact handle.
func (s *SQLiteStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var idStr string
	var contact *string
	profile := &models.Profile{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nickname, contact FROM users WHERE id = ?
	`, id.String()).Scan(&idStr, &profile.Nickname, &contact)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	profile.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	profile.Contact = deref(contact)
	return profile, nil
}

// InsertMessage persists a message, idempotently on client_id.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if msg.ClientID != "" {
		row := tx.QueryRowContext(ctx, `
			SELECT id, room_id, sender_id, content, client_id, is_read, ts
			FROM chat_messages WHERE client_id = ?
		`, msg.ClientID)
		existing, err := scanSQLiteMessage(row)
		if err == nil {
			return existing, tx.Commit()
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, room_id, sender_id, content, client_id, is_read, ts)
		VALUES (?, ?, ?, ?, ?, FALSE, ?)
	`, msg.ID, msg.RoomID.String(), msg.SenderID.String(), msg.Content,
		nullable(msg.ClientID), msg.Timestamp)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, room_id, sender_id, content, client_id, is_read, ts
		FROM chat_messages WHERE id = ?
	`, msg.ID)
	out, err := scanSQLiteMessage(row)
	if err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

// ListMessages retrieves all messages in a room in ascending creation order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, sender_id, content, client_id, is_read, ts
		FROM chat_messages
		WHERE room_id = ?
		ORDER BY ts ASC, id ASC
	`, roomID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	return messages, rows.Err()
}

// MarkMessagesRead flips is_read on the given messages.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, roomID uuid.UUID, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, roomID.String())
	placeholders := ""
	for i, id := range ids {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_messages
		SET is_read = TRUE
		WHERE room_id = ? AND id IN (`+placeholders+`) AND is_read = FALSE
	`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnread counts messages addressed to recipientID that are still unread.
func (s *SQLiteStore) CountUnread(ctx context.Context, roomID uuid.UUID, recipientID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_messages
		WHERE room_id = ? AND sender_id <> ? AND is_read = FALSE
	`, roomID.String(), recipientID.String()).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRoom(row sqliteScanner) (*models.Room, error) {
	room := &models.Room{}
	var idStr, buyerStr, sellerStr string
	var orderNumber, postID *string
	err := row.Scan(&idStr, &buyerStr, &sellerStr, &orderNumber, &postID, &room.CreatedAt)
	if err != nil {
		return nil, err
	}

	if room.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if room.BuyerID, err = uuid.Parse(buyerStr); err != nil {
		return nil, err
	}
	if room.SellerID, err = uuid.Parse(sellerStr); err != nil {
		return nil, err
	}
	room.OrderNumber = deref(orderNumber)
	room.PostID = deref(postID)
	return room, nil
}

func scanSQLiteMessage(row sqliteScanner) (*models.Message, error) {
	msg := &models.Message{Status: models.SendSent}
	var roomStr, senderStr string
	var clientID *string
	err := row.Scan(&msg.ID, &roomStr, &senderStr, &msg.Content, &clientID, &msg.IsRead, &msg.Timestamp)
	if err != nil {
		return nil, err
	}

	if msg.RoomID, err = uuid.Parse(roomStr); err != nil {
		return nil, err
	}
	if msg.SenderID, err = uuid.Parse(senderStr); err != nil {
		return nil, err
	}
	msg.ClientID = deref(clientID)
	return msg, nil
}
