// Package chat implements the realtime conversation subsystem of the
// marketplace: room resolution, the per-room message cache, optimistic sends
// with retry, the realtime subscription loop and read tracking.
package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/letsssss/naver-real-sub000/internal/identity"
	"github.com/letsssss/naver-real-sub000/internal/metrics"
	"github.com/letsssss/naver-real-sub000/internal/models"
	"github.com/letsssss/naver-real-sub000/internal/notify"
	"github.com/letsssss/naver-real-sub000/internal/store"
)

// Config assembles a Service's collaborators.
type Config struct {
	Store    store.DataStore
	Bus      store.EventBus
	Identity identity.Provider
	Notifier *notify.Notifier
	Logger   zerolog.Logger
	// SendPolicy overrides the default send backoff schedule. Used by tests.
	SendPolicy *Policy
}

// Service is the explicitly constructed entry point to the chat subsystem.
// One instance per process; surfaces obtain room sessions from it and give
// them back with Close.
type Service struct {
	store    store.DataStore
	bus      store.EventBus
	idp      identity.Provider
	notifier *notify.Notifier
	log      zerolog.Logger
	policy   Policy

	mu       sync.Mutex
	ready    bool
	initCh   chan struct{} // non-nil while an init is in flight
	initErr  error
	sessions map[sessionKey]*RoomSession
	closed   bool
}

// A room session is scoped to one user's view of one room.
type sessionKey struct {
	room uuid.UUID
	user uuid.UUID
}

// NewService creates the chat service. It does not touch the backend;
// EnsureReady does.
func NewService(cfg Config) *Service {
	policy := DefaultSendPolicy()
	if cfg.SendPolicy != nil {
		policy = *cfg.SendPolicy
	}
	return &Service{
		store:    cfg.Store,
		bus:      cfg.Bus,
		idp:      cfg.Identity,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		policy:   policy,
		sessions: make(map[sessionKey]*RoomSession),
	}
}

// EnsureReady establishes the backend connection once. Concurrent callers
// share the in-flight attempt; a failed attempt is retried by the next call.
// Returns ErrAuthRequired when no identity is available yet.
func (s *Service) EnsureReady(ctx context.Context) error {
	if _, state := s.idp.CurrentUser(ctx); state != identity.StateAuthenticated {
		return fmt.Errorf("%w (identity %s)", ErrAuthRequired, state)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	if s.initCh != nil {
		ch := s.initCh
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ready {
			return nil
		}
		return s.initErr
	}

	ch := make(chan struct{})
	s.initCh = ch
	s.mu.Unlock()

	err := s.connect(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.ready = true
		s.initErr = nil
	} else {
		s.initErr = fmt.Errorf("%w: %v", ErrInit, err)
	}
	s.initCh = nil
	close(ch)
	return s.initErr
}

func (s *Service) connect(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("row store: %v", err)
	}
	if err := s.bus.Ping(ctx); err != nil {
		return fmt.Errorf("event bus: %v", err)
	}
	return nil
}

// Ready reports whether the backend connection has been established.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// OpenRoom resolves the anchor, loads history, attaches the realtime
// subscription and returns the room session. Opening the same room again
// while a session is live returns the existing session, so independent
// widgets share one subscription and one cache.
func (s *Service) OpenRoom(ctx context.Context, anchor models.Anchor) (*RoomSession, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}

	userID, _ := s.idp.CurrentUser(ctx)

	room, self, other, err := s.resolveRoom(ctx, userID, anchor)
	if err != nil {
		return nil, err
	}

	key := sessionKey{room: room.ID, user: userID}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if existing, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	session, err := s.newRoomSession(ctx, *room, *self, *other)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		session.teardown()
		return nil, ErrClosed
	}
	if existing, ok := s.sessions[key]; ok {
		// Lost the race to another widget; use its session.
		s.mu.Unlock()
		session.teardown()
		return existing, nil
	}
	s.sessions[key] = session
	s.mu.Unlock()

	metrics.RoomsOpened.Inc()
	s.log.Info().
		Str("room_id", room.ID.String()).
		Str("user_id", userID.String()).
		Msg("room session opened")
	return session, nil
}

// Session returns the live session for a room, if the current user has one
// open.
func (s *Service) Session(ctx context.Context, roomID uuid.UUID) (*RoomSession, bool) {
	userID, state := s.idp.CurrentUser(ctx)
	if state != identity.StateAuthenticated {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionKey{room: roomID, user: userID}]
	return session, ok
}

// UnreadCount answers badge queries for rooms that are not open. It prefers
// the hot counter and falls back to the row store.
func (s *Service) UnreadCount(ctx context.Context, roomID uuid.UUID) (int, error) {
	userID, state := s.idp.CurrentUser(ctx)
	if state != identity.StateAuthenticated {
		return 0, ErrAuthRequired
	}

	count, err := s.bus.GetUnread(ctx, roomID, userID)
	if err == nil {
		return count, nil
	}
	s.log.Warn().Err(err).Str("room_id", roomID.String()).Msg("unread counter unavailable, falling back to row store")
	return s.store.CountUnread(ctx, roomID, userID)
}

func (s *Service) removeSession(session *RoomSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{room: session.room.ID, user: session.self.ID}
	if s.sessions[key] == session {
		delete(s.sessions, key)
	}
}

// Close disposes the service and every open room session.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.ready = false
	sessions := make([]*RoomSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = make(map[sessionKey]*RoomSession)
	s.mu.Unlock()

	for _, session := range sessions {
		session.teardown()
	}
}
