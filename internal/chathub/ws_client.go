package chathub

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"pulse/backend/internal/config"
	"pulse/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan models.Envelope

	closeOnce sync.Once
}

func NewWebSocketClient(conn *websocket.Conn, userID string) *WebSocketClient {
	return &WebSocketClient{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan models.Envelope, config.SendBufferSize),
	}
}

func (c *WebSocketClient) ID() string                             { return c.id }
func (c *WebSocketClient) UserID() string                         { return c.userID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Envelope { return c.send }

// Close closes the send channel, which stops writePump and hangs up.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Run starts the pumps. The session is closed when the read side ends.
func (c *WebSocketClient) Run(ctx context.Context, session *Session) {
	go c.writePump()
	go c.readPump(ctx, session)
}

// readPump feeds frames to the session one at a time.
func (c *WebSocketClient) readPump(ctx context.Context, session *Session) {
	defer func() {
		session.Close(ctx)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			return
		}

		ev, err := DecodeInbound(message)
		if err != nil {
			log.Printf("Skipping frame from user %s: %v", c.userID, err)
			continue
		}

		if err := session.Handle(ctx, ev); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return
			}
			log.Printf("Rejected %s from user %s: %v", ev.Name(), c.userID, err)
		}
	}
}

// writePump writes one text frame per envelope and keeps the connection
// alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(env); err != nil {
				log.Printf("Error writing to user %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
