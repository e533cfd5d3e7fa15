package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// NewClient builds a client for conn. Pass it to ServeWs.
func NewClient(hub *Hub, conn *websocket.Conn, measurementID uuid.UUID) *Client {
	return &Client{Hub: hub, Conn: conn, MeasurementID: measurementID, Send: make(chan []byte, 256), logger: hub.logger}
}

// ServeWs pumps client until the connection closes.
func ServeWs(client *Client) {
	if !client.Hub.join(client) {
		client.Conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
