package admin

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
)

// upgrader accepts any origin: this is an admin/dev surface, not a
// public one.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is one buffer-pool activity notification broadcast to connected
// admin clients: Op is "pin", "unpin", "evict", or "flush", naming the
// affected page.
type Event struct {
	Op   string `json:"op"`
	Page int    `json:"page"`
	Slot int    `json:"slot,omitempty"`
}

// eventHub fans out Events to every currently-connected WebSocket
// client. There is no backlog or durability - admin events are
// best-effort: a client whose write fails is closed and removed, and
// misses every later event.
type eventHub struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
	next  int
}

func newEventHub() *eventHub {
	return &eventHub{conns: make(map[string]*websocket.Conn)}
}

func (h *eventHub) add(conn *websocket.Conn) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := strconv.Itoa(h.next)
	h.conns[id] = conn
	return id
}

func (h *eventHub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

func (h *eventHub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.conns {
		if err := conn.WriteJSON(ev); err != nil {
			conn.Close()
			delete(h.conns, id)
		}
	}
}

// handleWS upgrades the connection and keeps it registered until the
// client disconnects. Admin clients don't send anything meaningful back;
// this just drains and discards incoming frames to detect a closed
// connection.
func (h *eventHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := h.add(conn)
	defer func() {
		h.remove(id)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
