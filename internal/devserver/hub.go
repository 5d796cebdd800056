package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/metrics"
)

// HMRPath is where browser clients connect
const HMRPath = "/__dunehmr"

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	// the dev server is local only
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	Subprotocols: []string{"vite-hmr"},
}

// Update is one module in an update message
type Update struct {
	Type         string `json:"type"` // "js-update"
	Path         string `json:"path"`
	AcceptedPath string `json:"acceptedPath"`
	Timestamp    int64  `json:"timestamp"`
}

// Payload is a message in the Vite HMR client protocol
type Payload struct {
	Type    string               `json:"type"` // connected, update, full-reload, error
	Updates []Update             `json:"updates,omitempty"`
	Path    string               `json:"path,omitempty"`
	Err     *domain.ErrorPayload `json:"err,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans HMR payloads out to every connected client
type Hub struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	clock   clock.Clock

	mu        sync.Mutex
	clients   map[string]*client
	lastError *domain.ErrorPayload
	closed    bool
	wg        sync.WaitGroup
}

// NewHub creates an empty hub. All arguments may be nil.
func NewHub(log *zap.Logger, m *metrics.Metrics, clk clock.Clock) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Hub{
		log:     log,
		metrics: m,
		clock:   clk,
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and serves the client until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if !h.register(c) {
		conn.Close()
		return
	}

	go func() {
		defer h.wg.Done()
		h.writePump(c)
	}()

	// clients never send anything we act on; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}

	h.clients[c.id] = c
	h.wg.Add(1)
	c.send <- mustMarshal(Payload{Type: "connected"})
	if h.lastError != nil {
		c.send <- mustMarshal(Payload{Type: "error", Err: h.lastError})
	}

	h.metrics.ClientConnected()
	h.log.Debug("HMR client connected", zap.String("client", c.id))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.metrics.ClientDisconnected()
	h.log.Debug("HMR client disconnected", zap.String("client", c.id))
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("HMR write failed", zap.String("client", c.id), zap.Error(err))
			return
		}
	}
}

func (h *Hub) broadcast(p Payload) {
	msg := mustMarshal(p)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// too slow; drop it and let the browser reconnect
			delete(h.clients, id)
			close(c.send)
			h.metrics.ClientDisconnected()
			h.log.Warn("dropping slow HMR client", zap.String("client", id))
		}
	}
}

// ReloadModules tells clients to re-import the given module URLs
func (h *Hub) ReloadModules(modules []string) {
	if len(modules) == 0 {
		return
	}
	ts := h.clock.Now().UnixMilli()
	updates := make([]Update, 0, len(modules))
	for _, m := range modules {
		updates = append(updates, Update{Type: "js-update", Path: m, AcceptedPath: m, Timestamp: ts})
	}
	h.clearError()
	h.broadcast(Payload{Type: "update", Updates: updates})
}

// FullReload tells every client to reload the page
func (h *Hub) FullReload() {
	h.clearError()
	h.broadcast(Payload{Type: "full-reload", Path: "*"})
}

// PushError shows the overlay on every client, including ones that connect later
func (h *Hub) PushError(p domain.ErrorPayload) {
	h.mu.Lock()
	h.lastError = &p
	h.mu.Unlock()
	h.broadcast(Payload{Type: "error", Err: &p})
}

// LastError returns the overlay replayed to new clients, or nil
func (h *Hub) LastError() *domain.ErrorPayload {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastError
}

func (h *Hub) clearError() {
	h.mu.Lock()
	h.lastError = nil
	h.mu.Unlock()
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for _, c := range h.clients {
		c.conn.Close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func mustMarshal(p Payload) []byte {
	b, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return b
}
