package gateway

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voxvid/voxvid/pkg/logger"
	"github.com/voxvid/voxvid/pkg/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// videoEvent is the frame pushed to watchers when a video completes.
type videoEvent struct {
	Event    string `json:"event"`
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
}

// Hub fans video completions out to connected WebSocket clients. Clients
// that cannot keep up are dropped; the polling endpoint remains the durable
// fallback.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	logger.DebugC("gateway", "watch client connected")

	// Reads are only used to detect disconnects; watchers never send.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Broadcast pushes a recorded video result to every watcher.
func (h *Hub) Broadcast(res store.VideoResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	event := videoEvent{
		Event:    "video",
		JobID:    res.JobID,
		Status:   res.Status,
		VideoURL: res.VideoURL,
	}
	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.clients, conn)
}

// Close disconnects all watchers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
