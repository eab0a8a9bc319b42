package handlers

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Feed streams a room session's events (inserts, updates, connection
// changes) to the UI over a WebSocket. The socket is push-only; the client
// sends commands through the REST endpoints.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The marketplace frontend and this service sit on different
		// origins behind the gateway.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return // Accept already wrote the error response
	}

	// Push-only, but control frames still need a reader.
	readCtx := conn.CloseRead(r.Context())

	events, unwatch := session.Watch()
	defer unwatch()

	for {
		select {
		case <-readCtx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return

		case ev, ok := <-events:
			if !ok {
				// Session closed underneath us.
				conn.Close(websocket.StatusGoingAway, "room closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Str("room_id", session.Room().ID.String()).Msg("feed write failed")
				conn.Close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}
