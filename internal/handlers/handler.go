package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/letsssss/naver-real-sub000/internal/chat"
	"github.com/letsssss/naver-real-sub000/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	svc *chat.Service
	pg  store.DataStore
	bus store.EventBus
	log zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *chat.Service, pg store.DataStore, bus store.EventBus, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, pg: pg, bus: bus, log: log}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// ChatError maps the chat error taxonomy to HTTP responses.
func (h *Handler) ChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrAuthRequired):
		h.Error(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, chat.ErrRoomNotFound):
		h.Error(w, http.StatusNotFound, "cannot open this conversation")
	case errors.Is(err, chat.ErrNotParticipant):
		h.Error(w, http.StatusForbidden, "cannot open this conversation")
	case errors.Is(err, chat.ErrEmptyMessage):
		h.Error(w, http.StatusBadRequest, "message is empty")
	case errors.Is(err, chat.ErrRoomNotOpen):
		h.Error(w, http.StatusConflict, "room is not open")
	case errors.Is(err, chat.ErrSendFailed):
		h.Error(w, http.StatusBadGateway, "message could not be delivered")
	case errors.Is(err, chat.ErrInit), errors.Is(err, chat.ErrClosed):
		h.Error(w, http.StatusServiceUnavailable, "chat backend unavailable")
	default:
		h.log.Error().Err(err).Msg("unhandled chat error")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// roomIDParam parses the {id} URL parameter.
func roomIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
