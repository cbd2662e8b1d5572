package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/cursorflow/internal/app"
)

const (
	// clientBuffer is how many path events may queue for a slow client
	// before new ones are dropped.
	clientBuffer = 16
	writeTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// WaypointHub streams every generated path to connected WebSocket clients.
type WaypointHub struct {
	log     *zap.Logger
	clients map[*websocket.Conn]chan []byte
	mu      sync.RWMutex
	dropped atomic.Int64
}

// NewWaypointHub creates an empty hub. Register Broadcast as an app path
// callback to feed it.
func NewWaypointHub(logger *zap.Logger) *WaypointHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaypointHub{
		log:     logger,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *WaypointHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	go h.writeLoop(conn, send)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Unregister before closing so Broadcast never sends on a closed channel.
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	close(send)
}

func (h *WaypointHub) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	for msg := range send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("websocket write error", zap.Error(err))
			conn.Close()
			// Drain so Broadcast never blocks on this client.
			for range send {
			}
			return
		}
	}
}

// Broadcast sends ev to every client without blocking. Clients that are
// behind miss the event.
func (h *WaypointHub) Broadcast(ev app.PathEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("error encoding path event", zap.Error(err))
		return
	}

	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped returns how many events were skipped for slow clients.
func (h *WaypointHub) Dropped() int64 {
	return h.dropped.Load()
}

// Clients returns the number of connected clients.
func (h *WaypointHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
