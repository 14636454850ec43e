package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/PIO-VIA/Snapppy/internal/lib/logger/sl"
	"github.com/PIO-VIA/Snapppy/internal/tempuser"
	"github.com/PIO-VIA/Snapppy/internal/ws"
	"github.com/PIO-VIA/Snapppy/internal/ws/hub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades the request and keeps the connection registered for the
// authenticated user until the client goes away.
func WSHandler(h *hub.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ws.WSHandler"

		user := tempuser.User(r)

		log := log.With(
			slog.String("op", op),
			slog.String("user_id", user.ExternalID),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade error", sl.Err(err))
			return
		}

		hc := hub.NewConnection(conn, user.ExternalID)
		go hc.WritePump()

		h.Register(hc)
		defer h.Unregister(hc)

		hello, _ := json.Marshal(ws.ServerEvent{Type: ws.TypeHello})
		hc.Send(hello)

		log.Debug("ws connected")

		if err := hc.ReadPump(); err != nil {
			log.Error("ws read error", sl.Err(err))
			return
		}

		log.Debug("ws disconnected")
	}
}
