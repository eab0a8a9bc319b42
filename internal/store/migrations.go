package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// schema creates the tables this subsystem owns. The orders, posts and users
// tables belong to the marketplace proper and are only read from here.
const schema = `
CREATE TABLE IF NOT EXISTS chat_rooms (
	id           UUID PRIMARY KEY,
	buyer_id     UUID NOT NULL,
	seller_id    UUID NOT NULL,
	order_number TEXT,
	post_id      TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_order_key
	ON chat_rooms (order_number) WHERE order_number IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_post_buyer_key
	ON chat_rooms (post_id, buyer_id) WHERE post_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS chat_messages (
	id        TEXT PRIMARY KEY,
	room_id   UUID NOT NULL REFERENCES chat_rooms(id),
	sender_id UUID NOT NULL,
	content   TEXT NOT NULL,
	client_id TEXT,
	is_read   BOOLEAN NOT NULL DEFAULT FALSE,
	ts        BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS chat_messages_client_key
	ON chat_messages (client_id) WHERE client_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS chat_messages_room_ts
	ON chat_messages (room_id, ts);
`

// RunMigrations applies the chat schema to the PostgreSQL database.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, schema)
	return err
}
