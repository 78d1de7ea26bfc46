package handlers

import (
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/eldtechnologies/chatterbox/internal/api/middleware"
	"github.com/eldtechnologies/chatterbox/internal/realtime"
)

// WebSocket upgrades an authenticated request and registers the connection
// as the caller's realtime handle until it closes.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(conn, user.ID, h.logger)
	h.presence.Register(user.ID, client)
	h.logger.Debug().Str("user_id", user.ID).Msg("client connected")

	defer func() {
		h.presence.Release(user.ID, client)
		h.logger.Debug().Str("user_id", user.ID).Msg("client disconnected")
	}()

	go client.WritePump()
	client.ReadPump()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}
