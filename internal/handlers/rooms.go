package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/letsssss/naver-real-sub000/internal/chat"
	"github.com/letsssss/naver-real-sub000/internal/models"
)

// OpenRoomRequest is the room-open request: exactly one anchor field.
type OpenRoomRequest struct {
	OrderNumber string `json:"order_number,omitempty"`
	PostID      string `json:"post_id,omitempty"`
}

// OpenRoomResponse carries everything the conversation surface needs to
// render its first frame.
type OpenRoomResponse struct {
	Room        models.Room      `json:"room"`
	OtherParty  models.Profile   `json:"other_party"`
	Messages    []models.Message `json:"messages"`
	UnreadCount int              `json:"unread_count"`
	ConnState   string           `json:"conn_state"`
}

// OpenRoom resolves the anchor and opens (or re-uses) the caller's session
// for the room.
func (h *Handler) OpenRoom(w http.ResponseWriter, r *http.Request) {
	var req OpenRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	anchor := models.Anchor{OrderNumber: req.OrderNumber, PostID: req.PostID}
	if anchor.IsZero() {
		h.Error(w, http.StatusBadRequest, "order_number or post_id is required")
		return
	}

	session, err := h.svc.OpenRoom(r.Context(), anchor)
	if err != nil {
		h.ChatError(w, err)
		return
	}

	messages := session.Messages()
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, OpenRoomResponse{
		Room:        session.Room(),
		OtherParty:  session.OtherParty(),
		Messages:    messages,
		UnreadCount: session.UnreadCount(),
		ConnState:   session.ConnState().String(),
	})
}

// CloseRoom tears the caller's session for the room down. Closing a room
// that is not open is fine.
func (h *Handler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	if session, ok := h.svc.Session(r.Context(), roomID); ok {
		session.Close()
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// UnreadCount answers badge queries without requiring an open session.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	count, err := h.svc.UnreadCount(r.Context(), roomID)
	if err != nil {
		h.ChatError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

// session fetches the caller's open session or writes the conflict response.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*chat.RoomSession, bool) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return nil, false
	}

	session, ok := h.svc.Session(r.Context(), roomID)
	if !ok {
		h.ChatError(w, chat.ErrRoomNotOpen)
		return nil, false
	}
	return session, true
}
