package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/letsssss/naver-real-sub000/internal/models"
)

// resolveRoom turns an anchor into the room record plus both participants'
// profiles. The room is upserted by its natural key, so resolving the same
// anchor any number of times yields the same room id.
func (s *Service) resolveRoom(ctx context.Context, userID uuid.UUID, anchor models.Anchor) (*models.Room, *models.Profile, *models.Profile, error) {
	if anchor.IsZero() {
		return nil, nil, nil, fmt.Errorf("%w: anchor has no order number or post id", ErrRoomNotFound)
	}

	var candidate models.Room
	switch {
	case anchor.OrderNumber != "":
		buyer, seller, err := s.store.GetOrderParties(ctx, anchor.OrderNumber)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("look up order %s: %w", anchor.OrderNumber, err)
		}
		if buyer == uuid.Nil || seller == uuid.Nil {
			return nil, nil, nil, fmt.Errorf("%w: order %s", ErrRoomNotFound, anchor.OrderNumber)
		}
		if userID != buyer && userID != seller {
			return nil, nil, nil, fmt.Errorf("%w: order %s", ErrNotParticipant, anchor.OrderNumber)
		}
		candidate = models.Room{
			BuyerID:     buyer,
			SellerID:    seller,
			OrderNumber: anchor.OrderNumber,
			PostID:      anchor.PostID,
		}

	default:
		seller, err := s.store.GetListingSeller(ctx, anchor.PostID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("look up post %s: %w", anchor.PostID, err)
		}
		if seller == uuid.Nil {
			return nil, nil, nil, fmt.Errorf("%w: post %s has no seller", ErrRoomNotFound, anchor.PostID)
		}
		if userID == seller {
			// A seller has no counterparty until someone opens the chat.
			return nil, nil, nil, fmt.Errorf("%w: post %s", ErrNotParticipant, anchor.PostID)
		}
		candidate = models.Room{
			BuyerID:  userID,
			SellerID: seller,
			PostID:   anchor.PostID,
		}
	}

	room, err := s.store.UpsertRoom(ctx, candidate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("upsert room: %w", err)
	}

	otherID, ok := room.OtherParty(userID)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: room %s", ErrNotParticipant, room.ID)
	}

	self := s.profileOrPlaceholder(ctx, userID)
	other := s.profileOrPlaceholder(ctx, otherID)
	return room, self, other, nil
}

// profileOrPlaceholder never fails room opening over a missing profile row;
// the conversation still works without a display name.
func (s *Service) profileOrPlaceholder(ctx context.Context, id uuid.UUID) *models.Profile {
	profile, err := s.store.GetProfile(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", id.String()).Msg("profile lookup failed")
	}
	if profile == nil {
		return &models.Profile{ID: id, Nickname: "unknown"}
	}
	return profile
}
