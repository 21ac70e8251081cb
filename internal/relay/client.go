package relay

import (
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"

	"chatsync/internal/models"
	"chatsync/internal/protocol"
)

const (
	readWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client represents one websocket connection.
type Client struct {
	UserID string
	Name   string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan []byte
}

// NewClient creates a client for an authenticated connection.
func NewClient(userID, name string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID: userID,
		Name:   name,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan []byte, 256),
	}
}

// ReadPump handles incoming frames from the client.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(readWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}
		c.handleFrame(data)
	}
}

// WritePump handles outgoing frames to the client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("write error: %v", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame routes one inbound frame through the protocol gate. Invalid
// send frames get an error reply carrying the tempId so the client can
// retry; everything else malformed is dropped.
func (c *Client) handleFrame(data []byte) {
	event, payload, err := protocol.Decode(data)
	if err != nil {
		log.Printf("invalid frame from %s: %v", c.UserID, err)
		if event == protocol.EventSend {
			c.sendError("invalid message", tempIDFrom(data))
		}
		return
	}

	switch event {
	case protocol.EventSend:
		c.handleSend(payload.(protocol.SendPayload))
	case protocol.EventTyping:
		c.handleTyping(payload.(models.TypingInfo))
	case protocol.EventMarkRead:
		c.handleMarkRead(payload.(protocol.ReadPayload))
	default:
		log.Printf("unexpected event %q from %s", event, c.UserID)
	}
}

// sendError reports a failure back to this client only.
func (c *Client) sendError(message, tempID string) {
	c.Hub.SendToUser(c.UserID, protocol.NewEnvelope(protocol.EventError, protocol.ErrorPayload{
		Message: message,
		TempID:  tempID,
	}))
}
