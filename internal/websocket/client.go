package websocket

import (
	"errors"
	"time"

	"vitals-scan-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// vital-sign callbacks carry the whole result bag
	maxMessageSize = 64 * 1024
)

var (
	ErrClientGone = errors.New("websocket: client disconnected")
	ErrClientSlow = errors.New("websocket: client send buffer full")
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	MeasurementID uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	// OnMessage receives every inbound text frame. It may be nil.
	OnMessage func(data []byte)

	logger logger.ILogger
	// guarded by Hub.mu
	gone bool
}

// Write queues data for this client alone.
func (c *Client) Write(data []byte) error {
	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if c.gone {
		return ErrClientGone
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrClientSlow
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"measurement_id": c.MeasurementID,
					"error":          err.Error(),
				})
			}
			return
		}
		// any inbound traffic proves the peer is alive
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.OnMessage != nil {
			c.OnMessage(data)
		}
	}
}

// writePump sends one frame per websocket message; frames are JSON
// documents and cannot be concatenated.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Client", "Ping failed", map[string]interface{}{"measurement_id": c.MeasurementID, "error": err.Error()})
				return
			}
		}
	}
}
