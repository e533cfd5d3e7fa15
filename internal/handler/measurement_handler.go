package handler

import (
	"context"
	"errors"

	"vitals-scan-be/internal/bridge"
	"vitals-scan-be/internal/config"
	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/internal/pkg/serverutils"
	"vitals-scan-be/internal/service"
	internalWS "vitals-scan-be/internal/websocket"
	"vitals-scan-be/pkg/capture"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// MeasurementHandler serves the measurement websocket. In bridge mode
// the first connection of a measurement hosts its engine and camera;
// later connections only watch snapshots.
type MeasurementHandler struct {
	service service.IMeasurementService
	tokens  *serverutils.TokenIssuer
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewMeasurementHandler(svc service.IMeasurementService, tokens *serverutils.TokenIssuer, hub *internalWS.Hub, log logger.ILogger) *MeasurementHandler {
	return &MeasurementHandler{
		service: svc,
		tokens:  tokens,
		hub:     hub,
		logger:  log,
	}
}

// ServeWs checks the measurement before upgrading the connection.
func (h *MeasurementHandler) ServeWs(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Locals(serverutils.MeasurementIDKey).(string))
	if err != nil {
		return fiber.ErrUnauthorized
	}
	if _, err := h.service.Get(c.UserContext(), id); err != nil {
		if errors.Is(err, service.ErrMeasurementNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.serve(conn, id)
	})(c)
}

func (h *MeasurementHandler) serve(conn *websocket.Conn, id uuid.UUID) {
	client := internalWS.NewClient(h.hub, conn, id)
	details := map[string]interface{}{"measurement_id": id}

	attached := false
	if h.service.EngineMode() == config.EngineBridge {
		remote := bridge.New(client.Write, h.logger)
		defer remote.Close()
		client.OnMessage = func(data []byte) {
			if err := remote.Handle(data); err != nil {
				h.logger.Warn("MeasurementHandler", "Rejected client frame", map[string]interface{}{
					"measurement_id": id,
					"error":          err.Error(),
				})
			}
		}

		err := h.service.Attach(context.Background(), id, remote, remote)
		switch {
		case err == nil:
			attached = true
		case errors.Is(err, capture.ErrSessionBusy):
			h.logger.Info("MeasurementHandler", "Measurement already hosted, joining as viewer", details)
			client.OnMessage = nil
		default:
			h.logger.Warn("MeasurementHandler", "Cannot attach measurement", map[string]interface{}{
				"measurement_id": id,
				"error":          err.Error(),
			})
			client.OnMessage = nil
		}
	}

	h.logger.Info("MeasurementHandler", "Starting WebSocket session", details)
	internalWS.ServeWs(client)
	h.logger.Info("MeasurementHandler", "WebSocket session ended", details)

	if attached {
		h.service.Detach(id)
	}
}

func (h *MeasurementHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/measurements/ws", serverutils.JwtMiddleware(h.tokens), h.ServeWs)
}
