package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/traffic-control/internal/httputil"
	"github.com/banshee-data/traffic-control/internal/monitoring"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Subscribers only send control frames.
	maxMessageSize = 512
	// Pending area updates per subscriber before it is dropped.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// subscriber is one websocket connection on /api/stream.
type subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans area updates out to websocket subscribers.
type Hub struct {
	subscribers map[*subscriber]bool
	broadcast   chan []byte
	register    chan *subscriber
	unregister  chan *subscriber
	done        chan struct{}
	mu          sync.Mutex
}

// NewHub returns a hub with no subscribers. Call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]bool),
		broadcast:   make(chan []byte, sendBuffer),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		done:        make(chan struct{}),
	}
}

// Run delivers broadcasts until ctx is done, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for sub := range h.subscribers {
				close(sub.send)
				delete(h.subscribers, sub)
			}
			h.mu.Unlock()
			return
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			h.mu.Unlock()
			monitoring.Logf("stream subscriber connected from %s", sub.conn.RemoteAddr())
		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
				monitoring.Logf("stream subscriber %s disconnected", sub.conn.RemoteAddr())
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for sub := range h.subscribers {
				select {
				case sub.send <- message:
				default:
					close(sub.send)
					delete(h.subscribers, sub)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribers reports how many connections are registered.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish queues message for every subscriber. When the queue is full the
// message is dropped; the next update carries the whole grid anyway.
func (h *Hub) Publish(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		monitoring.Logf("stream queue full, dropping area update")
	}
}

func (s *Server) publishArea() {
	payload, err := json.Marshal(s.area())
	if err != nil {
		monitoring.Logf("failed to encode area update: %v", err)
		return
	}
	s.hub.Publish(payload)
}

// handleStream upgrades GET /api/stream to a websocket. The current area is
// sent first, then one message per command that changes the grid.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("failed to upgrade stream connection: %v", err)
		return
	}

	initial, err := json.Marshal(s.area())
	if err != nil {
		monitoring.Logf("failed to encode area: %v", err)
		conn.Close()
		return
	}

	sub := &subscriber{hub: s.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	sub.send <- initial
	select {
	case s.hub.register <- sub:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go sub.writePump()
	go sub.readPump()
}

// readPump drains control frames and unregisters the subscriber when the
// peer goes away.
func (c *subscriber) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				monitoring.Logf("stream read error: %v", err)
			}
			return
		}
	}
}

func (c *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
