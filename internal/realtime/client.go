package realtime

import (
	"encoding/json"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"
)

// Conn is the part of *websocket.Conn a client uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Client struct {
	hub    *Hub
	conn   Conn
	userID int64
	role   string
	send   chan []byte

	mu     sync.RWMutex
	topics map[string]struct{}
}

func NewClient(hub *Hub, conn Conn, userID int64, role string, topics map[string]struct{}) *Client {
	if topics == nil {
		topics = make(map[string]struct{})
	}
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		role:   role,
		send:   make(chan []byte, 32),
		topics: topics,
	}
}

func (c *Client) wants(event Event) bool {
	c.mu.RLock()
	_, subscribed := c.topics[event.Entity]
	all := len(c.topics) == 0
	c.mu.RUnlock()

	if !subscribed && !all {
		return false
	}
	return audienceIncludes(event, c.userID, c.role)
}

type clientCommand struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

// ReadPump accepts {"type":"subscribe","topics":[...]} to change the topic set and returns
// when the connection closes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var command clientCommand
		if err := json.Unmarshal(payload, &command); err != nil || command.Type != "subscribe" {
			continue
		}

		topics := make(map[string]struct{}, len(command.Topics))
		for _, topic := range command.Topics {
			topics[topic] = struct{}{}
		}
		c.mu.Lock()
		c.topics = topics
		c.mu.Unlock()
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
