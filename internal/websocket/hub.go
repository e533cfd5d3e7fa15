package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"vitals-scan-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel carries frames between instances that share a Redis.
const ClusterChannel = "cluster_events"

type clusterMessage struct {
	Origin        string          `json:"origin"`
	MeasurementID string          `json:"target_measurement_id"`
	Message       json.RawMessage `json:"message"`
}

// Hub routes frames to the websocket clients watching a measurement.
type Hub struct {
	// MeasurementID -> clients (the bridge connection plus any viewers)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}

	mu sync.RWMutex

	// nil disables cross-instance delivery
	rdb    *redis.Client
	origin string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

// Run serves registrations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.MeasurementID] = append(h.clients[client.MeasurementID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"measurement_id": client.MeasurementID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.MeasurementID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.MeasurementID] = append(clients[:i:i], clients[i+1:]...)
			client.gone = true
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.MeasurementID]) == 0 {
		delete(h.clients, client.MeasurementID)
		h.logger.Info("Hub", "Measurement has no more clients", map[string]interface{}{"measurement_id": client.MeasurementID})
	}
}

// Send delivers data to the local clients of measurementID and publishes
// it for the other instances.
func (h *Hub) Send(measurementID uuid.UUID, data []byte) {
	h.deliver(measurementID, data)

	if h.rdb != nil {
		payload, err := json.Marshal(clusterMessage{Origin: h.origin, MeasurementID: measurementID.String(), Message: data})
		if err != nil {
			h.logger.Error("Hub", "Failed to encode cluster message", map[string]interface{}{"error": err.Error()})
			return
		}
		if err := h.rdb.Publish(context.Background(), ClusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// SendJSON encodes v and sends it.
func (h *Hub) SendJSON(measurementID uuid.UUID, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode frame", map[string]interface{}{"error": err.Error()})
		return
	}
	h.Send(measurementID, data)
}

// Connected reports how many local clients watch measurementID.
func (h *Hub) Connected(measurementID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[measurementID])
}

func (h *Hub) deliver(measurementID uuid.UUID, data []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, client := range h.clients[measurementID] {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"measurement_id": measurementID})
		go h.leave(client)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.origin {
			continue
		}
		id, err := uuid.Parse(payload.MeasurementID)
		if err != nil {
			continue
		}
		h.deliver(id, payload.Message)
	}
}
