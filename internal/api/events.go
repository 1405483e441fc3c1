package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sceneforge/pkg/registry"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// EventsHandler pushes registry events to the frontend over a websocket.
type EventsHandler struct {
	reg      *registry.Registry
	upgrader websocket.Upgrader
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(reg *registry.Registry) *EventsHandler {
	return &EventsHandler{
		reg: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The server binds to localhost; the UI is the only client.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleEvents upgrades the connection and forwards events until the client
// disconnects or the registry subscription is dropped.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.reg.Subscribe()
	defer cancel()

	// Drain client frames so close/pong handling works.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	slog.Debug("Event stream client connected", "remote", r.RemoteAddr)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("Event stream client gone", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
