package chat

import (
	"context"
	"fmt"

	"github.com/letsssss/naver-real-sub000/internal/metrics"
	"github.com/letsssss/naver-real-sub000/internal/models"
)

// MarkVisible is called when the conversation surface is on screen with
// messages loaded. Every cached unread message from the counterparty is
// flipped to read locally and in the row store, read receipts are published,
// and the badge counter is cleared. Marking an already-read conversation is
// a no-op.
func (rs *RoomSession) MarkVisible(ctx context.Context) error {
	if rs.isClosed() {
		return ErrClosed
	}

	ids := rs.cache.UnreadFrom(rs.room.ID, rs.other.ID)
	if len(ids) > 0 {
		changed, err := rs.svc.store.MarkMessagesRead(ctx, rs.room.ID, ids)
		if err != nil {
			return fmt.Errorf("mark messages read: %w", err)
		}
		metrics.MessagesRead.Add(float64(changed))

		for _, id := range ids {
			if !rs.cache.UpdateReadState(rs.room.ID, id, true) {
				continue
			}
			receipt := models.ChatEvent{
				Kind: models.EventUpdated,
				Message: models.Message{
					ID:     id,
					RoomID: rs.room.ID,
					IsRead: true,
				},
			}
			rs.fanOut(receipt)
			if err := rs.svc.bus.PublishEvent(ctx, receipt); err != nil {
				rs.log.Warn().Err(err).Str("msg_id", id).Msg("read receipt publish failed")
			}
		}
	}

	if err := rs.svc.bus.ResetUnread(ctx, rs.room.ID, rs.self.ID); err != nil {
		rs.log.Warn().Err(err).Msg("unread counter reset failed")
	}
	return nil
}
