// Package notify pushes newly raised alerts to websocket subscribers. Hub
// implements core.AlertDispatcher; delivery is best effort and slow clients
// are dropped.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"coopquality/internal/core"
	"coopquality/pkg/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// ErrClosed is returned by Dispatch once the hub has stopped.
var ErrClosed = errors.New("notify: hub closed")

// Message is the frame written to subscribers.
type Message struct {
	Type   string         `json:"type"`
	SentAt time.Time      `json:"sent_at"`
	Alerts []domain.Alert `json:"alerts"`
}

type broadcast struct {
	alerts  []domain.Alert
	payload func([]domain.Alert) ([]byte, error)
}

// Hub fans alerts out to connected clients.
type Hub struct {
	logger   core.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	register   chan *client
	unregister chan *client
	broadcast  chan broadcast
	done       chan struct{}
	connected  atomic.Int32
}

// Option customises a Hub.
type Option func(*Hub)

// WithLogger routes hub diagnostics to l.
func WithLogger(l core.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin overrides the upgrader origin check. The default accepts
// same-origin requests only.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// NewHub builds a hub. Call Run before dispatching.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger: nopLogger{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		now:        time.Now,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan broadcast),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	clients := map[*client]struct{}{}
	defer func() {
		close(h.done)
		for c := range clients {
			close(c.send)
		}
		h.connected.Store(0)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			h.connected.Store(int32(len(clients)))
			h.logger.Debug("alert subscriber connected", "client", c.id, "min_severity", c.minSeverity)
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				h.connected.Store(int32(len(clients)))
				h.logger.Debug("alert subscriber disconnected", "client", c.id)
			}
		case b := <-h.broadcast:
			for c := range clients {
				selected := c.filter(b.alerts)
				if len(selected) == 0 {
					continue
				}
				payload, err := b.payload(selected)
				if err != nil {
					h.logger.Error("encode alert frame", "error", err)
					continue
				}
				select {
				case c.send <- payload:
				default:
					delete(clients, c)
					close(c.send)
					h.logger.Warn("alert subscriber too slow, dropped", "client", c.id)
				}
			}
			h.connected.Store(int32(len(clients)))
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int { return int(h.connected.Load()) }

// Dispatch implements core.AlertDispatcher.
func (h *Hub) Dispatch(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	sentAt := h.now().UTC()
	b := broadcast{
		alerts: alerts,
		payload: func(selected []domain.Alert) ([]byte, error) {
			return json.Marshal(Message{Type: "alerts", SentAt: sentAt, Alerts: selected})
		},
	}
	select {
	case h.broadcast <- b:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the request. The optional min_severity query parameter
// (low, medium, high, critical) limits what the subscriber receives.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	minSeverity := domain.Criticality(r.URL.Query().Get("min_severity"))
	if minSeverity != "" && rank(minSeverity) == 0 {
		http.Error(w, "unknown min_severity", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{id: uuid.NewString(), hub: h, conn: conn, send: make(chan []byte, sendBuffer), minSeverity: minSeverity}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
