package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/evanmori/neighborlink/pkg/logger"
	"github.com/evanmori/neighborlink/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16 // 64 KiB; clients only send small control frames

	defaultBufferSize = 64
)

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Stream string `json:"stream"`
	Event  string `json:"event"`
	Data   any    `json:"data,omitempty"`
}

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// Hub is the live connection registry: it maps user ids to their open
// WebSocket connections and fans pushed messages out to them. A user may hold
// several connections (multiple tabs); disconnect removes exactly the closing
// connection, never a newer one from a reconnect.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*connection]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
		log: logger.WithModule("realtime"),
	}
}

// Serve upgrades the HTTP connection to a WebSocket and registers the
// authenticated user. The caller must have verified identity already; the hub
// trusts the supplied user id.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		http.Error(w, "identity required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newConnection(h, conn, userID)
	h.register(client)

	go client.writeLoop()
	client.readLoop()
}

// Push implements Broadcaster: it delivers a message to every live connection
// for the supplied user, subscribed to the message's stream. Absence of any
// connection is not an error. A connection whose buffer is full gets dropped
// rather than blocking the caller.
func (h *Hub) Push(userID string, message Message) {
	if userID == "" || message.Stream == "" {
		return
	}

	var stalled []*connection

	h.mu.RLock()
	for client := range h.clients[userID] {
		if !client.subscribed(message.Stream) {
			continue
		}
		select {
		case client.send <- message:
		case <-client.done:
		default:
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	// Closing unregisters under the write lock, so it must happen after the
	// read lock is released.
	for _, client := range stalled {
		h.log.Warn("dropping backpressured client", zap.String("user_id", client.userID))
		client.close()
	}
}

// PushToUsers delivers a message to each of the supplied user ids.
func (h *Hub) PushToUsers(userIDs []string, message Message) {
	for _, userID := range userIDs {
		h.Push(userID, message)
	}
}

// Connected reports whether the user currently holds at least one live connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*connection]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
	metrics.ConnectedClients.Inc()
}

// unregister removes exactly the supplied connection. When the same user has
// reconnected from elsewhere the newer connection stays registered.
func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients := h.clients[client.userID]
	if _, ok := userClients[client]; !ok {
		return
	}

	delete(userClients, client)
	if len(userClients) == 0 {
		delete(h.clients, client.userID)
	}
	metrics.ConnectedClients.Dec()
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	userID string
	send   chan Message
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	streams map[string]struct{}
}

func newConnection(hub *Hub, conn *websocket.Conn, userID string) *connection {
	// Every client starts subscribed to all streams; control messages can
	// narrow the set afterwards.
	streams := map[string]struct{}{
		StreamNotifications: {},
		StreamChat:          {},
		StreamPresence:      {},
	}
	return &connection{
		hub:     hub,
		socket:  conn,
		userID:  userID,
		send:    make(chan Message, defaultBufferSize),
		done:    make(chan struct{}),
		streams: streams,
	}
}

func (c *connection) subscribed(stream string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.streams[stream]
	return ok
}

func (c *connection) setSubscriptions(streams []string, subscribe bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stream := range streams {
		stream = strings.ToLower(strings.TrimSpace(stream))
		if stream == "" {
			continue
		}
		if subscribe {
			c.streams[stream] = struct{}{}
		} else {
			delete(c.streams, stream)
		}
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			break
		}

		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			c.hub.log.Debug("invalid control payload", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}

		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "subscribe":
			c.setSubscriptions(ctrl.Streams, true)
		case "unsubscribe":
			c.setSubscriptions(ctrl.Streams, false)
		case "ping":
			// Never block the read loop on a congested writer; a dropped
			// pong just means the client pings again.
			select {
			case c.send <- Message{Stream: StreamPresence, Event: "pong"}:
			default:
			}
		default:
			c.hub.log.Debug("unsupported control action", zap.String("action", ctrl.Action))
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close tears the connection down exactly once. The send channel is never
// closed: senders race with teardown, and the done channel lets both loops and
// Push observe the shutdown without a send-on-closed-channel panic.
func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
