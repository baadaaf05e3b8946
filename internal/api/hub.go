package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

const (
	clientBuffer  = 16
	writeDeadline = 5 * time.Second
)

// Hub fans computed index values out to connected websocket clients.
// It implements contracts.Publisher so the session machine can push to
// it alongside the other sinks.
type Hub struct {
	logger  *logger.Logger
	limiter *rate.Limiter

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

// NewHub creates an empty hub. Broadcasts are capped at one per second
// so a burst of replayed ticks cannot flood clients.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:  log,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// PublishIndices broadcasts the latest batch to every client. Slow
// clients get the message dropped rather than stalling the tick, and
// over-rate batches are skipped entirely.
func (h *Hub) PublishIndices(_ context.Context, values []contracts.SectorIndexValue) error {
	if len(values) == 0 {
		return nil
	}
	if !h.limiter.Allow() {
		return nil
	}

	msg, err := json.Marshal(map[string]interface{}{
		"type":      "indices",
		"timestamp": values[0].Timestamp,
		"values":    values,
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the connection and runs the write pump until the
// client goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	ch := h.register(conn)
	h.logger.WithField("remote", r.RemoteAddr).Debug("Websocket client connected")

	defer func() {
		h.unregister(conn)
		conn.Close()
		h.logger.WithField("remote", r.RemoteAddr).Debug("Websocket client disconnected")
	}()

	// Read pump in the background so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister(conn)
				return
			}
		}
	}()

	for msg := range ch {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}
