package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/letsssss/naver-real-sub000/internal/chat"
	"github.com/letsssss/naver-real-sub000/internal/models"
)

const maxMessageBytes = 4096

// SendMessageRequest is the send request body.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// MessagesResponse is the message-list response.
type MessagesResponse struct {
	Messages    []models.Message `json:"messages"`
	UnreadCount int              `json:"unread_count"`
	ConnState   string           `json:"conn_state"`
}

// GetMessages returns the session's current ordered message list.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	messages := session.Messages()
	if messages == nil {
		messages = []models.Message{}
	}
	h.JSON(w, http.StatusOK, MessagesResponse{
		Messages:    messages,
		UnreadCount: session.UnreadCount(),
		ConnState:   session.ConnState().String(),
	})
}

// SendMessage sends content into the room. The response is the confirmed
// message; a 502 means the backoff schedule was exhausted and the optimistic
// entry is now marked failed.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Content) > maxMessageBytes {
		h.Error(w, http.StatusUnprocessableEntity, "content too long (max 4096 bytes)")
		return
	}

	msg, err := session.Send(r.Context(), req.Content)
	if err != nil {
		if errors.Is(err, chat.ErrSendFailed) {
			h.log.Warn().Err(err).Str("room_id", session.Room().ID.String()).Msg("send exhausted retries")
		}
		h.ChatError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// MarkRead marks the conversation visible: all counterparty messages become
// read and the badge counter clears.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := session.MarkVisible(r.Context()); err != nil {
		h.ChatError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]int{"unread_count": session.UnreadCount()})
}
