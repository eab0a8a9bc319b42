package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/letsssss/naver-real-sub000/internal/identity"
	"github.com/letsssss/naver-real-sub000/internal/models"
	"github.com/letsssss/naver-real-sub000/internal/store"
)

// fakeStore is an in-memory DataStore.
type fakeStore struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]models.Room
	messages map[uuid.UUID][]models.Message
	orders   map[string][2]uuid.UUID // order number -> buyer, seller
	posts    map[string]uuid.UUID    // post id -> seller
	profiles map[uuid.UUID]models.Profile

	pingErr        error
	pingCalls      int
	insertFailures int // fail this many InsertMessage calls
	insertCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    make(map[uuid.UUID]models.Room),
		messages: make(map[uuid.UUID][]models.Message),
		orders:   make(map[string][2]uuid.UUID),
		posts:    make(map[string]uuid.UUID),
		profiles: make(map[uuid.UUID]models.Profile),
	}
}

func (f *fakeStore) Close() {}

func (f *fakeStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingCalls++
	return f.pingErr
}

func (f *fakeStore) UpsertRoom(_ context.Context, room models.Room) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rooms {
		if room.OrderNumber != "" && existing.OrderNumber == room.OrderNumber {
			out := existing
			return &out, nil
		}
		if room.OrderNumber == "" && existing.PostID == room.PostID && existing.BuyerID == room.BuyerID {
			out := existing
			return &out, nil
		}
	}
	room.ID = uuid.New()
	room.CreatedAt = time.Now()
	f.rooms[room.ID] = room
	out := room
	return &out, nil
}

func (f *fakeStore) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[id]; ok {
		return &room, nil
	}
	return nil, nil
}

func (f *fakeStore) GetOrderParties(_ context.Context, orderNumber string) (uuid.UUID, uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if parties, ok := f.orders[orderNumber]; ok {
		return parties[0], parties[1], nil
	}
	return uuid.Nil, uuid.Nil, nil
}

func (f *fakeStore) GetListingSeller(_ context.Context, postID string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[postID], nil
}

func (f *fakeStore) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if profile, ok := f.profiles[id]; ok {
		return &profile, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertFailures > 0 {
		f.insertFailures--
		return nil, errors.New("connection reset")
	}
	if msg.ClientID != "" {
		for _, existing := range f.messages[msg.RoomID] {
			if existing.ClientID == msg.ClientID {
				out := existing
				return &out, nil
			}
		}
	}
	stored := *msg
	stored.Status = models.SendSent
	f.messages[msg.RoomID] = append(f.messages[msg.RoomID], stored)
	out := stored
	return &out, nil
}

func (f *fakeStore) ListMessages(_ context.Context, roomID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, len(f.messages[roomID]))
	copy(out, f.messages[roomID])
	return out, nil
}

func (f *fakeStore) MarkMessagesRead(_ context.Context, roomID uuid.UUID, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	var changed int64
	list := f.messages[roomID]
	for i := range list {
		if idSet[list[i].ID] && !list[i].IsRead {
			list[i].IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (f *fakeStore) CountUnread(_ context.Context, roomID uuid.UUID, recipientID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, msg := range f.messages[roomID] {
		if msg.SenderID != recipientID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

// seedMessage stores a confirmed message directly, bypassing the sender.
func (f *fakeStore) seedMessage(roomID, senderID uuid.UUID, content string, ts int64) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := models.Message{
		ID:        ulid.Make().String(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: ts,
		Status:    models.SendSent,
	}
	f.messages[roomID] = append(f.messages[roomID], msg)
	return msg
}

// fakeSub is an in-memory Subscription fed by fakeBus or directly by tests.
type fakeSub struct {
	events chan models.ChatEvent
	states chan models.ConnState
	once   sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{
		events: make(chan models.ChatEvent, 64),
		states: make(chan models.ConnState, 8),
	}
}

func (s *fakeSub) Events() <-chan models.ChatEvent { return s.events }
func (s *fakeSub) States() <-chan models.ConnState { return s.states }

func (s *fakeSub) Close() error {
	s.once.Do(func() {
		close(s.events)
		close(s.states)
	})
	return nil
}

func (s *fakeSub) push(ev models.ChatEvent) {
	s.events <- ev
}

func (s *fakeSub) pushState(st models.ConnState) {
	s.states <- st
}

// fakeBus is an in-memory EventBus that fans published events back out to
// room subscribers, like the real pub/sub does.
type fakeBus struct {
	mu        sync.Mutex
	subs      map[uuid.UUID][]*fakeSub
	published []models.ChatEvent
	unread    map[string]int
	pingErr   error
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		subs:   make(map[uuid.UUID][]*fakeSub),
		unread: make(map[string]int),
	}
}

func (b *fakeBus) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pingErr
}

func (b *fakeBus) PublishEvent(_ context.Context, ev models.ChatEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, ev)
	for _, sub := range b.subs[ev.Message.RoomID] {
		select {
		case sub.events <- ev:
		default:
		}
	}
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, roomID uuid.UUID) (store.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := newFakeSub()
	b.subs[roomID] = append(b.subs[roomID], sub)
	return sub, nil
}

func (b *fakeBus) roomSub(roomID uuid.UUID) *fakeSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[roomID]
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

func unreadMapKey(roomID, userID uuid.UUID) string {
	return roomID.String() + ":" + userID.String()
}

func (b *fakeBus) IncrUnread(_ context.Context, roomID, userID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unread[unreadMapKey(roomID, userID)]++
	return nil
}

func (b *fakeBus) ResetUnread(_ context.Context, roomID, userID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.unread, unreadMapKey(roomID, userID))
	return nil
}

func (b *fakeBus) GetUnread(_ context.Context, roomID, userID uuid.UUID) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unread[unreadMapKey(roomID, userID)], nil
}

// testEnv wires a Service to fakes with buyer/seller fixtures.
type testEnv struct {
	svc    *Service
	store  *fakeStore
	bus    *fakeBus
	buyer  uuid.UUID
	seller uuid.UUID
	anchor models.Anchor
}

func newTestEnv(t *testing.T, user uuid.UUID) *testEnv {
	t.Helper()

	fs := newFakeStore()
	fb := newFakeBus()
	buyer := uuid.New()
	seller := uuid.New()
	fs.orders["ORD-1"] = [2]uuid.UUID{buyer, seller}
	fs.posts["POST-1"] = seller
	fs.profiles[buyer] = models.Profile{ID: buyer, Nickname: "buyer", Contact: "buyer@example.com"}
	fs.profiles[seller] = models.Profile{ID: seller, Nickname: "seller", Contact: "seller@example.com"}

	if user == uuid.Nil {
		user = buyer
	}
	policy := fastPolicy()
	svc := NewService(Config{
		Store:      fs,
		Bus:        fb,
		Identity:   identity.Static{UserID: user},
		Logger:     zerolog.Nop(),
		SendPolicy: &policy,
	})
	t.Cleanup(svc.Close)

	return &testEnv{
		svc:    svc,
		store:  fs,
		bus:    fb,
		buyer:  buyer,
		seller: seller,
		anchor: models.Anchor{OrderNumber: "ORD-1"},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEnsureReadyRequiresIdentity(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(Config{
		Store:    fs,
		Bus:      newFakeBus(),
		Identity: identity.Static{}, // anonymous
		Logger:   zerolog.Nop(),
	})
	defer svc.Close()

	err := svc.EnsureReady(context.Background())
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if fs.pingCalls != 0 {
		t.Fatal("no backend call should happen without identity")
	}
	if svc.Ready() {
		t.Fatal("service must not report ready")
	}
}

func TestEnsureReadySingleFlight(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := env.svc.EnsureReady(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if env.store.pingCalls != 1 {
		t.Fatalf("expected one initialization, got %d pings", env.store.pingCalls)
	}
	if !env.svc.Ready() {
		t.Fatal("service should be ready")
	}
}

func TestEnsureReadyRetriesAfterFailure(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	env.store.pingErr = errors.New("dns failure")

	err := env.svc.EnsureReady(context.Background())
	if !errors.Is(err, ErrInit) {
		t.Fatalf("expected ErrInit, got %v", err)
	}
	if env.svc.Ready() {
		t.Fatal("service must not be ready after failed init")
	}

	env.store.mu.Lock()
	env.store.pingErr = nil
	env.store.mu.Unlock()

	if err := env.svc.EnsureReady(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if !env.svc.Ready() {
		t.Fatal("service should be ready after retry")
	}
}

func TestOpenRoomIdempotent(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	ctx := context.Background()

	first, err := env.svc.OpenRoom(ctx, env.anchor)
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.svc.OpenRoom(ctx, env.anchor)
	if err != nil {
		t.Fatal(err)
	}

	// Two widgets for the same order share one session, one subscription,
	// one history.
	if first != second {
		t.Fatal("expected the same session for the same anchor")
	}
	if first.Room().ID != second.Room().ID {
		t.Fatal("expected identical room ids")
	}
	if first.OtherParty().ID != env.seller {
		t.Fatalf("expected seller as counterparty, got %s", first.OtherParty().ID)
	}
}

func TestOpenRoomByListingAnchor(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	ctx := context.Background()
	anchor := models.Anchor{PostID: "POST-1"}

	first, err := env.svc.OpenRoom(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if first.Room().BuyerID != env.buyer || first.Room().SellerID != env.seller {
		t.Fatal("listing anchor should bind current user as buyer")
	}

	second, err := env.svc.OpenRoom(ctx, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if first.Room().ID != second.Room().ID {
		t.Fatal("expected identical room ids for the same listing anchor")
	}
}

func TestOpenRoomUnknownOrder(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)

	_, err := env.svc.OpenRoom(context.Background(), models.Anchor{OrderNumber: "NOPE"})
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestOpenRoomNotParticipant(t *testing.T) {
	stranger := uuid.New()
	env := newTestEnv(t, stranger)

	_, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestSendOptimisticSuccess(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := session.Send(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != models.SendSent {
		t.Fatalf("expected sent, got %s", msg.Status)
	}
	if msg.ClientID == "" {
		t.Fatal("confirmed message should keep its client id")
	}

	messages := session.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 cached message, got %d", len(messages))
	}
	if messages[0].Status != models.SendSent {
		t.Fatalf("cached entry should be sent, got %s", messages[0].Status)
	}
	if env.store.insertCalls != 1 {
		t.Fatalf("expected 1 insert, got %d", env.store.insertCalls)
	}

	// Counterparty badge bumped.
	count, _ := env.bus.GetUnread(context.Background(), session.Room().ID, env.seller)
	if count != 1 {
		t.Fatalf("expected seller unread 1, got %d", count)
	}
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	// Offline for two attempts, back within the retry window.
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}
	env.store.insertFailures = 2

	msg, err := session.Send(context.Background(), "안녕하세요")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != models.SendSent {
		t.Fatalf("expected sent after reconnect, got %s", msg.Status)
	}
	if env.store.insertCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", env.store.insertCalls)
	}

	messages := session.Messages()
	if len(messages) != 1 {
		t.Fatalf("message should appear exactly once, got %d entries", len(messages))
	}
	if messages[0].Content != "안녕하세요" {
		t.Fatalf("unexpected content %q", messages[0].Content)
	}
}

func TestSendRetryBound(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}
	env.store.insertFailures = 100

	_, err = session.Send(context.Background(), "doomed")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
	// One initial attempt plus exactly three retries, then stop.
	if env.store.insertCalls != 4 {
		t.Fatalf("expected 4 attempts, got %d", env.store.insertCalls)
	}

	messages := session.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected the failed entry to remain, got %d", len(messages))
	}
	if messages[0].Status != models.SendFailed {
		t.Fatalf("expected failed status, got %s", messages[0].Status)
	}

	// The room stays usable: a fresh send creates a new message with a new
	// client id.
	msg, err := session.Send(context.Background(), "recovered")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ClientID == messages[0].ClientID {
		t.Fatal("resend must not reuse the failed client id")
	}
	if got := len(session.Messages()); got != 2 {
		t.Fatalf("expected failed + recovered entries, got %d", got)
	}
}

func TestSendRejectsEmptyContent(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}

	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := session.Send(context.Background(), content); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("content %q: expected ErrEmptyMessage, got %v", content, err)
		}
	}
	if env.store.insertCalls != 0 {
		t.Fatal("validation failures must not reach the network")
	}
	if got := len(session.Messages()); got != 0 {
		t.Fatalf("no optimistic entry expected, got %d", got)
	}
}

func TestRapidSendsKeepSubmissionOrder(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := session.Send(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Send(context.Background(), "2"); err != nil {
		t.Fatal(err)
	}

	messages := session.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", len(messages))
	}
	if messages[0].Content != "1" || messages[1].Content != "2" {
		t.Fatalf("expected submission order 1,2; got %q,%q", messages[0].Content, messages[1].Content)
	}
	assertAscending(t, messages)
}

func TestEchoDoesNotDuplicate(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := session.Send(context.Background(), "once")
	if err != nil {
		t.Fatal(err)
	}

	// The realtime channel delivers the same underlying row again.
	sub := env.bus.roomSub(session.Room().ID)
	sub.push(models.ChatEvent{Kind: models.EventInserted, Message: *msg})

	time.Sleep(20 * time.Millisecond)
	messages := session.Messages()
	if len(messages) != 1 {
		t.Fatalf("echo duplicated the message: %d entries", len(messages))
	}
	if messages[0].ClientID != msg.ClientID {
		t.Fatal("surviving entry should carry the client id")
	}
}

func TestIncomingInsertFromCounterparty(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}

	incoming := models.Message{
		ID:        ulid.Make().String(),
		RoomID:    session.Room().ID,
		SenderID:  env.seller,
		Content:   "is this still available?",
		Timestamp: time.Now().UnixMilli(),
	}
	env.bus.roomSub(session.Room().ID).push(models.ChatEvent{Kind: models.EventInserted, Message: incoming})

	waitFor(t, "incoming message", func() bool {
		return len(session.Messages()) == 1
	})
	if session.UnreadCount() != 1 {
		t.Fatalf("expected unread 1, got %d", session.UnreadCount())
	}
}

func TestUpdateForUnknownIDIgnored(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}

	env.bus.roomSub(session.Room().ID).push(models.ChatEvent{
		Kind:    models.EventUpdated,
		Message: models.Message{ID: "missing", RoomID: session.Room().ID, IsRead: true},
	})

	time.Sleep(20 * time.Millisecond)
	if got := len(session.Messages()); got != 0 {
		t.Fatalf("unknown update must not create entries, got %d", got)
	}
}

func TestMarkVisibleClearsUnread(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	ctx := context.Background()

	// Resolve the room id up front so history can be seeded.
	room, _, _, err := env.svc.resolveRoom(ctx, env.buyer, env.anchor)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		env.store.seedMessage(room.ID, env.seller, fmt.Sprintf("msg %d", i), int64(i+1))
	}

	session, err := env.svc.OpenRoom(ctx, env.anchor)
	if err != nil {
		t.Fatal(err)
	}
	if session.UnreadCount() != 5 {
		t.Fatalf("expected 5 unread on open, got %d", session.UnreadCount())
	}

	if err := session.MarkVisible(ctx); err != nil {
		t.Fatal(err)
	}
	if session.UnreadCount() != 0 {
		t.Fatalf("expected 0 unread after MarkVisible, got %d", session.UnreadCount())
	}
	for _, msg := range session.Messages() {
		if !msg.IsRead {
			t.Fatalf("message %s still unread", msg.ID)
		}
	}

	// Persisted too.
	stored, _ := env.store.ListMessages(ctx, room.ID)
	for _, msg := range stored {
		if !msg.IsRead {
			t.Fatalf("stored message %s still unread", msg.ID)
		}
	}

	// Idempotent.
	if err := session.MarkVisible(ctx); err != nil {
		t.Fatal(err)
	}
	if session.UnreadCount() != 0 {
		t.Fatal("second MarkVisible should stay at 0")
	}
}

func TestConnStateSurfaced(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}
	if session.ConnState() != models.ConnConnected {
		t.Fatalf("expected connected, got %s", session.ConnState())
	}

	sub := env.bus.roomSub(session.Room().ID)
	sub.pushState(models.ConnReconnecting)
	waitFor(t, "reconnecting state", func() bool {
		return session.ConnState() == models.ConnReconnecting
	})

	sub.pushState(models.ConnConnected)
	waitFor(t, "connected state", func() bool {
		return session.ConnState() == models.ConnConnected
	})
}

func TestCloseStopsFurtherMutations(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := session.Send(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}

	session.Close()

	if got := len(session.Messages()); got != 0 {
		t.Fatalf("cache should be evicted on close, got %d entries", got)
	}

	// Re-opening builds a fresh session that reloads history.
	again, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}
	if again == session {
		t.Fatal("expected a new session after close")
	}
	if got := len(again.Messages()); got != 1 {
		t.Fatalf("expected history reload with 1 message, got %d", got)
	}
}

func TestWatchReceivesEvents(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	session, err := env.svc.OpenRoom(context.Background(), env.anchor)
	if err != nil {
		t.Fatal(err)
	}

	events, unwatch := session.Watch()
	defer unwatch()

	if _, err := session.Send(context.Background(), "ping"); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Kind != models.EventInserted {
			t.Fatalf("expected insert event, got %s", ev.Kind)
		}
		if ev.Message.Content != "ping" {
			t.Fatalf("unexpected content %q", ev.Message.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered to watcher")
	}
}

func TestServiceUnreadCount(t *testing.T) {
	env := newTestEnv(t, uuid.Nil)
	ctx := context.Background()
	if err := env.svc.EnsureReady(ctx); err != nil {
		t.Fatal(err)
	}

	roomID := uuid.New()
	for i := 0; i < 3; i++ {
		if err := env.bus.IncrUnread(ctx, roomID, env.buyer); err != nil {
			t.Fatal(err)
		}
	}

	count, err := env.svc.UnreadCount(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected badge count 3, got %d", count)
	}
}
