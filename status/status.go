package status

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mogaika/mmd_browser/utils"
)

type Type int

const (
	INFO Type = iota
	ERROR
	PROGRESS
)

const (
	pingPeriod   = 30 * time.Second
	writeTimeout = 40 * time.Second
	clientBuffer = 32
)

type Message struct {
	Message  string
	Model    string `json:",omitempty"`
	Time     time.Time
	Type     Type
	Progress float32
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				utils.Logger("status").Warnf("ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				utils.Logger("status").Warnf("ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump drains control frames and detects closed peer
func (c *client) readPump() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.hub.unregister(c)
			return
		}
	}
}

// Hub broadcasts status messages to every connected websocket.
// Fresh clients receive the latest message first.
type Hub struct {
	lock    sync.Mutex
	clients map[*client]bool
	last    []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// Serve attaches websocket connection and blocks until peer disconnects
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}

	h.lock.Lock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
	h.lock.Unlock()

	go c.writePump()
	c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// Last returns latest published message, nil if nothing was published
func (h *Hub) Last() *Message {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.last == nil {
		return nil
	}
	var m Message
	if err := json.Unmarshal(h.last, &m); err != nil {
		return nil
	}
	return &m
}

func (h *Hub) Publish(m *Message) {
	if math.IsNaN(float64(m.Progress)) || math.IsInf(float64(m.Progress), 0) {
		m.Progress = 0
	}
	data, err := json.Marshal(m)
	if err != nil {
		utils.Logger("status").Errorf("Failed to marshal status: %v", err)
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// slow client misses message
		}
	}
}

func (h *Hub) Status(model string, msg string, t Type, progress float32) {
	switch t {
	case ERROR:
		utils.Logger("status").Error(msg, "model", model)
	default:
		utils.Logger("status").Debug(msg, "model", model)
	}
	h.Publish(&Message{
		Message:  msg,
		Model:    model,
		Time:     time.Now(),
		Type:     t,
		Progress: progress})
}

func (h *Hub) Info(model string, format string, a ...interface{}) {
	h.Status(model, fmt.Sprintf(format, a...), INFO, 0)
}

func (h *Hub) Error(model string, format string, a ...interface{}) {
	h.Status(model, fmt.Sprintf(format, a...), ERROR, 0)
}

func (h *Hub) Progress(model string, progress float32, format string, a ...interface{}) {
	h.Status(model, fmt.Sprintf(format, a...), PROGRESS, progress)
}
