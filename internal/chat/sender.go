package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/letsssss/naver-real-sub000/internal/metrics"
	"github.com/letsssss/naver-real-sub000/internal/models"
	"github.com/letsssss/naver-real-sub000/internal/notify"
)

// Send delivers content to the room optimistically: the message appears in
// the cache as "sending" before any network call, the remote write is
// retried on the service's backoff schedule with the same client id, and the
// optimistic entry is reconciled with the authoritative copy on success or
// marked failed when the schedule is exhausted. A failed message is
// terminal; resending means calling Send again, which produces a new message
// with a new client id.
func (rs *RoomSession) Send(ctx context.Context, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if rs.isClosed() {
		return nil, ErrClosed
	}

	clientID := uuid.NewString()
	msg := models.Message{
		ID:        ulid.Make().String(),
		RoomID:    rs.room.ID,
		SenderID:  rs.self.ID,
		Content:   content,
		ClientID:  clientID,
		Timestamp: time.Now().UnixMilli(),
		Status:    models.SendSending,
	}

	rs.cache.Insert(rs.room.ID, msg)
	rs.fanOut(models.ChatEvent{Kind: models.EventInserted, Message: msg})

	attempts := 0
	var confirmed *models.Message
	err := retry(ctx, rs.svc.policy, func(ctx context.Context) error {
		attempts++
		out, err := rs.svc.store.InsertMessage(ctx, &msg)
		if err != nil {
			rs.log.Warn().Err(err).Int("attempt", attempts).Str("client_id", clientID).Msg("send attempt failed")
			return err
		}
		confirmed = out
		return nil
	})
	if attempts > 1 {
		metrics.SendRetries.Add(float64(attempts - 1))
	}

	if err != nil {
		metrics.SendFailures.Inc()
		if !rs.isClosed() {
			if rs.cache.MarkFailed(rs.room.ID, clientID) {
				failed := msg
				failed.Status = models.SendFailed
				rs.fanOut(models.ChatEvent{Kind: models.EventUpdated, Message: failed})
			}
		}
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrSendFailed, attempts, err)
	}

	confirmed.Status = models.SendSent
	if !rs.isClosed() {
		rs.cache.UpsertByClientID(rs.room.ID, clientID, *confirmed)
		rs.fanOut(models.ChatEvent{Kind: models.EventInserted, Message: *confirmed})
	}
	metrics.MessagesSent.Inc()

	rs.afterConfirmed(ctx, confirmed)
	return confirmed, nil
}

// afterConfirmed runs the post-send side effects: fanning the insert out to
// the counterparty's subscribers, bumping their badge counter and firing the
// out-of-band notification. None of these can fail the message.
func (rs *RoomSession) afterConfirmed(ctx context.Context, confirmed *models.Message) {
	if err := rs.svc.bus.PublishEvent(ctx, models.ChatEvent{
		Kind:    models.EventInserted,
		Message: *confirmed,
	}); err != nil {
		// The row is persisted; the other side catches up on next open.
		rs.log.Warn().Err(err).Str("msg_id", confirmed.ID).Msg("event publish failed")
	}

	if err := rs.svc.bus.IncrUnread(ctx, rs.room.ID, rs.other.ID); err != nil {
		rs.log.Warn().Err(err).Msg("unread counter bump failed")
	}

	if rs.svc.notifier != nil {
		rs.svc.notifier.SendAsync(notify.Payload{
			Recipient:  rs.other.Contact,
			SenderName: rs.self.Nickname,
			Text:       confirmed.Content,
		})
	}
}
