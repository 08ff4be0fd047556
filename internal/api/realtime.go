package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mr1hm/relief-hub/internal/broadcast"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameBytes = 64 << 10
)

// frame is the wire shape of a real-time message in both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// originChecker allows same-origin and non-browser clients, plus any origin
// listed. A "*" entry allows everything.
func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(origins, "*") || slices.Contains(origins, origin) {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}

// events upgrades to a websocket subscribed to the broadcaster. Clients may
// send reportDisaster frames, which are relayed to everyone else as
// newDisaster without being stored.
func (h *Handler) events(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	id, ch := h.broadcaster.Subscribe()
	h.metrics.RealtimeSubscribers.Inc()
	h.logger.Debug("subscriber connected", "subscriber", id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readFrames(conn, id)
	}()

	h.writeFrames(conn, ch, done)

	h.broadcaster.Unsubscribe(id)
	conn.Close()
	<-done
	h.metrics.RealtimeSubscribers.Dec()
	h.logger.Debug("subscriber disconnected", "subscriber", id)
}

func (h *Handler) readFrames(conn *websocket.Conn, id uint64) {
	conn.SetReadLimit(maxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "subscriber", id, "error", err)
			}
			return
		}
		if f.Event != broadcast.EventReportDisaster || len(f.Data) == 0 {
			continue
		}
		h.broadcaster.Broadcast(broadcast.Event{
			Name:    broadcast.EventNewDisaster,
			Payload: f.Data,
			Origin:  id,
		})
	}
}

// writeFrames returns when the subscription is closed, the reader stops, or a
// write fails.
func (h *Handler) writeFrames(conn *websocket.Conn, ch <-chan broadcast.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			data, err := ev.Data()
			if err != nil {
				h.logger.Error("encoding event", "event", ev.Name, "error", err)
				continue
			}
			if err := conn.WriteJSON(frame{Event: ev.Name, Data: data}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
