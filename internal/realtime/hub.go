// Package realtime pushes game state to websocket subscribers of a session.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound messages buffered per client before it is dropped.
	sendBuffer = 16
)

// Hub tracks websocket clients per session key.
type Hub struct {
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
}

type client struct {
	hub  *Hub
	key  string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. allowOrigin reports whether a browser origin may connect;
// nil allows every origin.
func NewHub(allowOrigin func(origin string) bool) *Hub {
	h := &Hub{sessions: make(map[string]map[*client]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowOrigin == nil {
				return true
			}
			return allowOrigin(origin)
		},
	}
	return h
}

// ServeWS upgrades the request and subscribes the connection to key.
// initial, when non-nil, is sent as the first message.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, key string, initial any) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	c := &client{hub: h, key: key, conn: conn, send: make(chan []byte, sendBuffer)}
	if initial != nil {
		if b, err := json.Marshal(initial); err == nil {
			c.send <- b
		}
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

// Publish sends v as JSON to every subscriber of key.
func (h *Hub) Publish(key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal websocket message")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.sessions[key] {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("session", key).Msg("dropping slow websocket client")
		h.unregister(c)
	}
}

// Subscribers reports the number of clients subscribed to key.
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[key])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[c.key] == nil {
		h.sessions[c.key] = make(map[*client]struct{})
	}
	h.sessions[c.key][c] = struct{}{}
}

// unregister removes c and closes its send channel exactly once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.sessions[c.key]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.sessions, c.key)
	}
}

// readPump discards inbound messages; it exists to process control frames
// and notice when the peer goes away.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session", c.key).Msg("websocket closed")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
