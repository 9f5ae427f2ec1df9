package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trendclip/internal/logging"
)

// Type enumerates the dashboard event stream messages.
type Type string

const (
	TypeJobCreated      Type = "job_created"
	TypeJobUpdated      Type = "job_updated"
	TypeJobCompleted    Type = "job_completed"
	TypeJobFailed       Type = "job_failed"
	TypeJobCancelled    Type = "job_cancelled"
	TypeClipCreated     Type = "clip_created"
	TypeLogAppended     Type = "log_appended"
	TypeSettingsUpdated Type = "settings_updated"
)

// Event is one message pushed to subscribed dashboards. The UI may also fall
// back to polling; the stream is an optimization, not the source of truth.
type Event struct {
	Type      Type      `json:"type"`
	JobID     string    `json:"jobId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds to localhost by default; dashboards connect from
	// file:// or a dev server origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans events out to connected websocket clients. A slow or dead client
// never blocks publishers; its connection is dropped instead.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

// NewHub constructs an event hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Publish sends the event to every connected client.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal event", logging.Error(err))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	locks := make([]*sync.Mutex, 0, len(h.clients))
	for conn, lock := range h.clients {
		conns = append(conns, conn)
		locks = append(locks, lock)
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		locks[i].Lock()
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err := conn.WriteMessage(websocket.TextMessage, data)
		locks[i].Unlock()
		if err != nil {
			h.drop(conn)
		}
	}
}

// ClientCount reports connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the connection subscribed until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("event subscriber connected", logging.Int("subscribers", total))

	defer h.drop(conn)

	// Inbound messages are ignored; the read loop only detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("event subscriber read error", logging.Error(err))
			}
			return
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, present := h.clients[conn]
	delete(h.clients, conn)
	remaining := len(h.clients)
	h.mu.Unlock()

	_ = conn.Close()
	if present {
		h.logger.Debug("event subscriber disconnected", logging.Int("subscribers", remaining))
	}
}
