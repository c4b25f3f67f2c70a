package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/reroller/internal/app"
)

// writeWait bounds how long a slow client can hold up a broadcast.
const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// VerdictHub pushes every attempt event to connected WebSocket clients.
type VerdictHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewVerdictHub creates an empty hub. Register Publish with App.OnVerdict.
func NewVerdictHub() *VerdictHub {
	return &VerdictHub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *VerdictHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *VerdictHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends ev as JSON to every client. Clients that fail the write are dropped.
func (h *VerdictHub) Publish(ev app.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode verdict")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug().Err(err).Msg("dropping websocket client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
