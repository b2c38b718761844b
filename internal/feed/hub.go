package feed

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/logging"
	"github.com/muurk/oscquery/pkg/oscquery"
)

const (
	// Time allowed to write a message to the watcher
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the watcher
	pongWait = 60 * time.Second

	// Send pings to the watcher with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Watchers never send data; anything larger is a protocol violation
	maxMessageSize = 512

	// Messages buffered per watcher before it is considered too slow
	sendBuffer = 32

	// DefaultMaxClients bounds concurrent watchers
	DefaultMaxClients = 32
)

// Message types
const (
	TypePeerFound         = "peer-found"
	TypeParametersUpdated = "parameters-updated"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("feed is closed")

// Message is one JSON text frame on the feed
type Message struct {
	Type string          `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

// PeerFoundData is the payload of a peer-found message
type PeerFoundData struct {
	Instance string `json:"instance"`
	HTTP     string `json:"http"`
	OSC      string `json:"osc"`
}

// ParametersData is the payload of a parameters-updated message
type ParametersData struct {
	Peer       string         `json:"peer"`
	AvatarID   string         `json:"avatar_id"`
	Parameters map[string]any `json:"parameters"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	remote string
	once   sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans events out to websocket watchers. New watchers first receive the
// latest message of every type so they start from the current state.
type Hub struct {
	upgrader   websocket.Upgrader
	maxClients int

	mu      sync.Mutex
	clients map[*client]struct{}
	last    map[string][]byte
	order   []string
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates a hub accepting up to maxClients watchers (DefaultMaxClients
// when 0 or less).
func NewHub(maxClients int) *Hub {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		maxClients: maxClients,
		clients:    make(map[*client]struct{}),
		last:       make(map[string][]byte),
	}
}

// Len returns the number of connected watchers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams messages until the watcher
// leaves or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	switch {
	case h.closed:
		h.mu.Unlock()
		http.Error(w, "feed is closed", http.StatusServiceUnavailable)
		return
	case len(h.clients) >= h.maxClients:
		h.mu.Unlock()
		http.Error(w, "maximum watchers reached", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("Feed upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		remote: r.RemoteAddr,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	for _, msgType := range h.order {
		c.send <- h.last[msgType]
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	logging.Info("Feed watcher connected", zap.String("remote_addr", c.remote))

	go h.readPump(c)
	h.writePump(c)
}

// readPump only exists to notice disconnects and answer control frames
func (h *Hub) readPump(c *client) {
	defer c.stop()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Feed read error",
					zap.String("remote_addr", c.remote),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// writePump is the only writer of c.conn
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
		_ = c.conn.Close()
		h.wg.Done()
		logging.Info("Feed watcher disconnected", zap.String("remote_addr", c.remote))
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
}

// Publish sends a message to every watcher and remembers it for watchers that
// connect later. Watchers whose buffer is full are disconnected.
func (h *Hub) Publish(msgType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Message{Type: msgType, Time: time.Now().UTC(), Data: payload})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if _, seen := h.last[msgType]; !seen {
		h.order = append(h.order, msgType)
	}
	h.last[msgType] = frame

	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			logging.Warn("Feed watcher too slow, disconnecting", zap.String("remote_addr", c.remote))
			delete(h.clients, c)
			c.stop()
		}
	}
	return nil
}

// PublishPeerFound publishes a negotiated peer
func (h *Hub) PublishPeerFound(peer oscquery.PeerFound) error {
	return h.Publish(TypePeerFound, PeerFoundData{
		Instance: peer.Instance,
		HTTP:     peer.HTTP.String(),
		OSC:      peer.OSC.String(),
	})
}

// PublishSnapshot publishes a parameters snapshot
func (h *Hub) PublishSnapshot(s *oscquery.Snapshot) error {
	return h.Publish(TypeParametersUpdated, ParametersData{
		Peer:       s.Peer.String(),
		AvatarID:   s.AvatarID,
		Parameters: s.Parameters,
	})
}

// Close sends a close frame to every watcher and waits for them to leave.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		c.stop()
	}
	h.mu.Unlock()

	h.wg.Wait()
}
