package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/letsssss/naver-real-sub000/internal/models"
)

// FetchFunc loads a room's history from the backend.
type FetchFunc func(ctx context.Context) ([]models.Message, error)

// Cache is the in-memory, per-room ordered message store the UI renders
// from. Three flows mutate it (sender, realtime subscriber, read tracker),
// so every operation takes the lock and applies whole mutations in order.
type Cache struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*roomCache
}

type roomCache struct {
	loaded   bool
	messages []models.Message
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{rooms: make(map[uuid.UUID]*roomCache)}
}

func (c *Cache) room(roomID uuid.UUID) *roomCache {
	rc, ok := c.rooms[roomID]
	if !ok {
		rc = &roomCache{}
		c.rooms[roomID] = rc
	}
	return rc
}

// LoadHistory returns the room's messages, fetching from the backend only on
// the first call after creation or invalidation.
func (c *Cache) LoadHistory(ctx context.Context, roomID uuid.UUID, fetch FetchFunc) ([]models.Message, error) {
	c.mu.Lock()
	rc := c.room(roomID)
	if rc.loaded {
		out := snapshot(rc.messages)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	fetched, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rc = c.room(roomID)
	if !rc.loaded {
		// Optimistic entries inserted while the fetch was in flight stay;
		// fetched rows slot in around them.
		for _, msg := range fetched {
			insertOrdered(rc, msg)
		}
		rc.loaded = true
	}
	return snapshot(rc.messages), nil
}

// Messages returns a copy of the room's current ordered message list.
func (c *Cache) Messages(roomID uuid.UUID) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	rc, ok := c.rooms[roomID]
	if !ok {
		return nil
	}
	return snapshot(rc.messages)
}

// Insert adds a message at its ordered position. A message with a known id
// replaces the existing entry instead of duplicating it; the read flag stays
// monotonic through the replacement. Returns true when a new entry was
// added, false on replacement.
func (c *Cache) Insert(roomID uuid.UUID, msg models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return insertOrdered(c.room(roomID), msg)
}

// UpsertByClientID replaces the optimistic entry correlated by clientID with
// the authoritative copy. When no such entry exists (already reconciled, or
// the cache was rebuilt meanwhile) the confirmed copy is inserted, so the
// cache holds exactly one entry for the client id either way. Returns true
// if a pending entry was replaced.
func (c *Cache) UpsertByClientID(roomID uuid.UUID, clientID string, confirmed models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc := c.room(roomID)
	for i := range rc.messages {
		if rc.messages[i].ClientID == clientID {
			if rc.messages[i].IsRead {
				confirmed.IsRead = true
			}
			rc.messages = append(rc.messages[:i], rc.messages[i+1:]...)
			insertOrdered(rc, confirmed)
			return true
		}
	}
	insertOrdered(rc, confirmed)
	return false
}

// MarkFailed flips the optimistic entry for clientID to failed.
func (c *Cache) MarkFailed(roomID uuid.UUID, clientID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc := c.room(roomID)
	for i := range rc.messages {
		if rc.messages[i].ClientID == clientID && rc.messages[i].Pending() {
			rc.messages[i].Status = models.SendFailed
			return true
		}
	}
	return false
}

// HasPendingClientID reports whether an unconfirmed optimistic entry exists
// for clientID.
func (c *Cache) HasPendingClientID(roomID uuid.UUID, clientID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc, ok := c.rooms[roomID]
	if !ok {
		return false
	}
	for i := range rc.messages {
		if rc.messages[i].ClientID == clientID && rc.messages[i].Pending() {
			return true
		}
	}
	return false
}

// UpdateReadState applies a read-flag change. The flag is monotonic: once
// true it never goes back. Unknown message ids are ignored. Returns true if
// the stored flag changed.
func (c *Cache) UpdateReadState(roomID uuid.UUID, messageID string, isRead bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc, ok := c.rooms[roomID]
	if !ok {
		return false
	}
	for i := range rc.messages {
		if rc.messages[i].ID == messageID {
			if isRead && !rc.messages[i].IsRead {
				rc.messages[i].IsRead = true
				return true
			}
			return false
		}
	}
	return false
}

// UnreadFrom returns the ids of unread messages authored by senderID, in
// order. This feeds the read tracker when the surface becomes visible.
func (c *Cache) UnreadFrom(roomID uuid.UUID, senderID uuid.UUID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc, ok := c.rooms[roomID]
	if !ok {
		return nil
	}
	var ids []string
	for i := range rc.messages {
		if rc.messages[i].SenderID == senderID && !rc.messages[i].IsRead {
			ids = append(ids, rc.messages[i].ID)
		}
	}
	return ids
}

// CountUnreadFrom counts unread messages authored by senderID.
func (c *Cache) CountUnreadFrom(roomID uuid.UUID, senderID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc, ok := c.rooms[roomID]
	if !ok {
		return 0
	}
	count := 0
	for i := range rc.messages {
		if rc.messages[i].SenderID == senderID && !rc.messages[i].IsRead {
			count++
		}
	}
	return count
}

// Invalidate drops the room's entry. The next LoadHistory re-fetches. Also
// used as eviction when the conversation surface closes.
func (c *Cache) Invalidate(roomID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}

// insertOrdered places msg at its position in ascending (ts, id) order.
// Callers hold the lock. An entry with the same id is replaced in place with
// the read flag kept monotonic. Returns true when a new entry was added.
func insertOrdered(rc *roomCache, msg models.Message) bool {
	for i := range rc.messages {
		if rc.messages[i].ID == msg.ID {
			if rc.messages[i].IsRead {
				msg.IsRead = true
			}
			rc.messages[i] = msg
			return false
		}
	}

	pos := sort.Search(len(rc.messages), func(i int) bool {
		return msg.Before(&rc.messages[i])
	})
	rc.messages = append(rc.messages, models.Message{})
	copy(rc.messages[pos+1:], rc.messages[pos:])
	rc.messages[pos] = msg
	return true
}

func snapshot(messages []models.Message) []models.Message {
	out := make([]models.Message, len(messages))
	copy(out, messages)
	return out
}
