package notify

import (
	"time"

	"coopquality/pkg/domain"

	"github.com/gorilla/websocket"
)

type client struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	minSeverity domain.Criticality
}

func rank(c domain.Criticality) int {
	switch c {
	case domain.CriticalityLow:
		return 1
	case domain.CriticalityMedium:
		return 2
	case domain.CriticalityHigh:
		return 3
	case domain.CriticalityCritical:
		return 4
	}
	return 0
}

func (c *client) filter(alerts []domain.Alert) []domain.Alert {
	if c.minSeverity == "" {
		return alerts
	}
	floor := rank(c.minSeverity)
	var out []domain.Alert
	for _, a := range alerts {
		if rank(a.Severity) >= floor {
			out = append(out, a)
		}
	}
	return out
}

// readPump only services control frames; subscribers never send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("alert subscriber read failed", "client", c.id, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub closed"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
