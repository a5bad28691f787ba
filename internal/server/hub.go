package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/uikit/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 50 * time.Second

	// Browsers only listen; anything larger is a misbehaving peer.
	maxMessageSize = 512
)

// Message types sent to browsers.
const (
	MessageReload = "reload"
	MessageError  = "error"
)

// Message is sent to every connected browser.
type Message struct {
	Type      string    `json:"type"`
	Paths     []string  `json:"paths,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the live reload connections and fans messages out to them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients      map[*websocket.Conn]*client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *client
	unregister chan *websocket.Conn

	origins []string
	logger  logging.Logger
	done    chan struct{}
}

// NewHub creates a hub accepting connections from the given origin
// patterns in addition to same-host requests.
func NewHub(origins []string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]*client),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *client, 8),
		unregister: make(chan *websocket.Conn, 8),
		origins:    origins,
		logger:     logger.WithComponent("hub"),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.clientsMutex.Lock()
			h.clients[c.conn] = c
			total := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(ctx, "browser connected", "clients", total)
		case conn := <-h.unregister:
			h.remove(conn, websocket.StatusNormalClosure)
		case message := <-h.broadcast:
			h.clientsMutex.RLock()
			var stalled []*websocket.Conn
			for conn, c := range h.clients {
				select {
				case c.send <- message:
				default:
					stalled = append(stalled, conn)
				}
			}
			h.clientsMutex.RUnlock()
			for _, conn := range stalled {
				h.remove(conn, websocket.StatusPolicyViolation)
			}
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn, status websocket.StatusCode) {
	h.clientsMutex.Lock()
	c, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(c.send)
	}
	h.clientsMutex.Unlock()
	if ok {
		_ = conn.Close(status, "")
	}
}

func (h *Hub) closeAll() {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	for conn, c := range h.clients {
		close(c.send)
		_ = conn.Close(websocket.StatusGoingAway, "server stopped")
	}
	h.clients = make(map[*websocket.Conn]*client)
}

// Count returns the number of connected browsers.
func (h *Hub) Count() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every connected browser. It never blocks;
// when the queue is full the message is dropped since a later reload
// supersedes it.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		data = []byte(`{"type":"reload"}`)
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Debug(context.Background(), "broadcast queue full, dropping {type}", "type", msg.Type)
	}
}

// ServeHTTP upgrades the request to a websocket connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server stopped", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.origins,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, 16)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close(websocket.StatusGoingAway, "server stopped")
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards incoming messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c.conn:
		case <-h.done:
		}
	}()
	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				h.logger.Debug(context.Background(), "websocket closed", "error", err.Error())
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
