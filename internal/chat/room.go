package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/letsssss/naver-real-sub000/internal/models"
	"github.com/letsssss/naver-real-sub000/internal/store"

	"github.com/rs/zerolog"
)

// RoomSession is one user's live view of a conversation: the cached message
// list, the realtime subscription and the operations the UI surface calls.
// It is created by Service.OpenRoom and disposed with Close.
type RoomSession struct {
	svc   *Service
	room  models.Room
	self  models.Profile
	other models.Profile
	cache *Cache
	sub   store.Subscription
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	connState   models.ConnState
	watchers    map[int]chan models.ChatEvent
	nextWatcher int
	closed      bool
}

func (s *Service) newRoomSession(ctx context.Context, room models.Room, self, other models.Profile) (*RoomSession, error) {
	rs := &RoomSession{
		svc:       s,
		room:      room,
		self:      self,
		other:     other,
		cache:     NewCache(),
		log:       s.log.With().Str("room_id", room.ID.String()).Str("user_id", self.ID.String()).Logger(),
		connState: models.ConnDisconnected,
		watchers:  make(map[int]chan models.ChatEvent),
		done:      make(chan struct{}),
	}

	if _, err := rs.cache.LoadHistory(ctx, room.ID, func(ctx context.Context) ([]models.Message, error) {
		return s.store.ListMessages(ctx, room.ID)
	}); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	sub, err := s.bus.Subscribe(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("attach subscription: %w", err)
	}
	rs.sub = sub
	rs.connState = models.ConnConnected

	rs.ctx, rs.cancel = context.WithCancel(context.Background())
	go rs.loop()

	return rs, nil
}

// Room returns the resolved room record.
func (rs *RoomSession) Room() models.Room {
	return rs.room
}

// OtherParty returns the counterparty's profile.
func (rs *RoomSession) OtherParty() models.Profile {
	return rs.other
}

// Messages returns the current ordered message list.
func (rs *RoomSession) Messages() []models.Message {
	return rs.cache.Messages(rs.room.ID)
}

// ConnState returns the realtime subscription's health.
func (rs *RoomSession) ConnState() models.ConnState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.connState
}

// UnreadCount counts cached messages from the counterparty not yet read.
func (rs *RoomSession) UnreadCount() int {
	return rs.cache.CountUnreadFrom(rs.room.ID, rs.other.ID)
}

// Watch registers a listener for this session's events (inserts, updates,
// connection changes). The returned func unregisters it. Slow listeners have
// events dropped rather than stalling the session.
func (rs *RoomSession) Watch() (<-chan models.ChatEvent, func()) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	id := rs.nextWatcher
	rs.nextWatcher++
	ch := make(chan models.ChatEvent, 32)
	if rs.closed {
		close(ch)
		return ch, func() {}
	}
	rs.watchers[id] = ch

	return ch, func() {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		if w, ok := rs.watchers[id]; ok {
			delete(rs.watchers, id)
			close(w)
		}
	}
}

// Close detaches the subscription, evicts the cache and removes the session
// from the service. After Close no further cache mutations come from the
// realtime feed; an in-flight send may still finish against the backend but
// no longer updates any surface.
func (rs *RoomSession) Close() {
	rs.svc.removeSession(rs)
	rs.teardown()
}

func (rs *RoomSession) teardown() {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return
	}
	rs.closed = true
	watchers := rs.watchers
	rs.watchers = make(map[int]chan models.ChatEvent)
	rs.mu.Unlock()

	rs.cancel()
	rs.sub.Close()
	<-rs.done

	for _, ch := range watchers {
		close(ch)
	}
	rs.cache.Invalidate(rs.room.ID)
	rs.log.Info().Msg("room session closed")
}

func (rs *RoomSession) isClosed() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.closed
}

// loop is the single consumer of the realtime subscription. Applying events
// here, in arrival order, is what makes the cache's ordering guarantees
// auditable.
func (rs *RoomSession) loop() {
	defer close(rs.done)

	events := rs.sub.Events()
	states := rs.sub.States()
	for {
		select {
		case <-rs.ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			rs.apply(ev)

		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			rs.setConnState(st)
		}

		if events == nil && states == nil {
			return
		}
	}
}

func (rs *RoomSession) apply(ev models.ChatEvent) {
	switch ev.Kind {
	case models.EventInserted:
		msg := ev.Message
		msg.Status = models.SendSent

		if msg.SenderID == rs.self.ID && msg.ClientID != "" &&
			rs.cache.HasPendingClientID(rs.room.ID, msg.ClientID) {
			// Own echo: reconcile the optimistic entry instead of appending.
			rs.cache.UpsertByClientID(rs.room.ID, msg.ClientID, msg)
		} else if !rs.cache.Insert(rs.room.ID, msg) {
			// Known id, nothing new to surface.
			return
		}
		rs.fanOut(models.ChatEvent{Kind: models.EventInserted, Message: msg})

	case models.EventUpdated:
		if rs.cache.UpdateReadState(rs.room.ID, ev.Message.ID, ev.Message.IsRead) {
			rs.fanOut(ev)
		}
	}
}

func (rs *RoomSession) setConnState(st models.ConnState) {
	rs.mu.Lock()
	if rs.connState == st {
		rs.mu.Unlock()
		return
	}
	rs.connState = st
	rs.mu.Unlock()

	rs.log.Debug().Str("state", st.String()).Msg("subscription state changed")
	rs.fanOut(models.ChatEvent{Kind: models.EventConnection, State: st.String()})
}

func (rs *RoomSession) fanOut(ev models.ChatEvent) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.closed {
		return
	}
	for _, ch := range rs.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}
