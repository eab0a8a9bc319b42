package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/letsssss/naver-real-sub000/internal/metrics"
	"github.com/letsssss/naver-real-sub000/internal/models"
)

const (
	// unreadTTL bounds badge counters; the authoritative count lives in the
	// row store and is recomputed on room open.
	unreadTTL = 30 * 24 * time.Hour

	subscribeBaseDelay = time.Second
	subscribeMaxDelay  = 30 * time.Second
)

// RedisStore handles the push side of the backend: change-event fan-out over
// pub/sub and hot per-user unread counters.
type RedisStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string, log zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, log: log}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// roomEventsChannel returns the pub/sub channel for a room's change events.
func roomEventsChannel(roomID uuid.UUID) string {
	return fmt.Sprintf("room:%s:events", roomID)
}

// unreadKey returns the key for a user's unread counter in a room.
func unreadKey(roomID, userID uuid.UUID) string {
	return fmt.Sprintf("room:%s:unread:%s", roomID, userID)
}

// PublishEvent fans a change event out to every live subscriber of the room.
func (s *RedisStore) PublishEvent(ctx context.Context, ev models.ChatEvent) error {
	start := time.Now()
	defer func() {
		metrics.RedisLatency.Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, roomEventsChannel(ev.Message.RoomID), data).Err()
}

// IncrUnread bumps the badge counter for userID in a room.
func (s *RedisStore) IncrUnread(ctx context.Context, roomID, userID uuid.UUID) error {
	key := unreadKey(roomID, userID)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, unreadTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// ResetUnread clears the badge counter for userID in a room.
func (s *RedisStore) ResetUnread(ctx context.Context, roomID, userID uuid.UUID) error {
	return s.client.Del(ctx, unreadKey(roomID, userID)).Err()
}

// GetUnread reads the badge counter for userID in a room.
func (s *RedisStore) GetUnread(ctx context.Context, roomID, userID uuid.UUID) (int, error) {
	count, err := s.client.Get(ctx, unreadKey(roomID, userID)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// roomSubscription is a live pub/sub feed for one room. The read loop owns
// both channels and closes them on exit.
type roomSubscription struct {
	pubsub *redis.PubSub
	events chan models.ChatEvent
	states chan models.ConnState
	cancel context.CancelFunc
	log    zerolog.Logger
}

// Subscribe opens a change-event feed for one room. The subscription resumes
// the live stream across connection drops on its own; it never replays
// history.
func (s *RedisStore) Subscribe(ctx context.Context, roomID uuid.UUID) (Subscription, error) {
	channel := roomEventsChannel(roomID)
	pubsub := s.client.Subscribe(ctx, channel)

	// Confirm the subscription is established before handing it out.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sub := &roomSubscription{
		pubsub: pubsub,
		events: make(chan models.ChatEvent, 64),
		states: make(chan models.ConnState, 8),
		cancel: cancel,
		log:    s.log.With().Str("room_id", roomID.String()).Logger(),
	}

	go sub.readLoop(loopCtx)

	return sub, nil
}

// Events yields insert/update events in arrival order.
func (r *roomSubscription) Events() <-chan models.ChatEvent {
	return r.events
}

// States yields connection-health transitions.
func (r *roomSubscription) States() <-chan models.ConnState {
	return r.states
}

// Close tears the subscription down. After it returns no further events are
// delivered; the read loop closes both channels on exit.
func (r *roomSubscription) Close() error {
	r.cancel()
	return r.pubsub.Close()
}

func (r *roomSubscription) readLoop(ctx context.Context) {
	defer close(r.events)
	defer close(r.states)

	r.pushState(models.ConnConnected)

	attempt := 0
	for {
		msg, err := r.pubsub.ReceiveMessage(ctx)
		if ctx.Err() != nil {
			r.pushState(models.ConnDisconnected)
			return
		}
		if err != nil {
			r.pushState(models.ConnReconnecting)
			metrics.SubscriptionDrops.Inc()

			delay := subscribeBaseDelay << attempt
			if delay > subscribeMaxDelay {
				delay = subscribeMaxDelay
			}
			if attempt < 6 {
				attempt++
			}

			select {
			case <-ctx.Done():
				r.pushState(models.ConnDisconnected)
				return
			case <-time.After(delay):
			}
			continue
		}

		if attempt > 0 {
			attempt = 0
			r.pushState(models.ConnConnected)
		}

		var ev models.ChatEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			r.log.Warn().Err(err).Msg("dropping malformed room event")
			continue
		}

		select {
		case r.events <- ev:
		default:
			// Slow consumer: drop rather than stall the feed. The room cache
			// is rebuilt from the row store on reopen.
			r.log.Warn().Str("msg_id", ev.Message.ID).Msg("event buffer full, dropping")
		}
	}
}

func (r *roomSubscription) pushState(st models.ConnState) {
	select {
	case r.states <- st:
	default:
	}
}
