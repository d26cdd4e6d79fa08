package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vitaliisemenov/recsa-core/internal/events"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebsocketData serves GET /ws/data: upgrades to a websocket and
// streams the current snapshot plus every subsequent lifecycle event the
// resolver's event bus publishes, so a dashboard need not poll /data.
func (h *Handler) handleWebsocketData(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub := events.NewChannelSubscriber(uuid.NewString(), r.Context(), 32)
	if err := h.res.Events().Subscribe(sub); err != nil {
		h.log.Warn("websocket subscribe failed", "err", err)
		return
	}
	defer h.res.Events().Unsubscribe(sub)

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	go h.wsDrainReads(conn, sub)

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(map[string]interface{}{"type": "snapshot", "data": h.res.GetData()}); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Context().Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// wsDrainReads discards any client-sent frames, closing sub once the
// client goes away; a websocket connection must still be read from to
// notice a close frame.
func (h *Handler) wsDrainReads(conn *websocket.Conn, sub *events.ChannelSubscriber) {
	defer sub.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
