package controller

import (
	"vitals-scan-be/internal/dto"
	"vitals-scan-be/internal/pkg/serverutils"
	"vitals-scan-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IMeasurementController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Continue(ctx *fiber.Ctx) error
	Exit(ctx *fiber.Ctx) error
	Results(ctx *fiber.Ctx) error
}

type measurementController struct {
	service service.IMeasurementService
	tokens  *serverutils.TokenIssuer
}

func NewMeasurementController(service service.IMeasurementService, tokens *serverutils.TokenIssuer) IMeasurementController {
	return &measurementController{service: service, tokens: tokens}
}

// RegisterRoutes must run after the websocket route is registered, or
// GET /measurements/ws would match :id.
func (c *measurementController) RegisterRoutes(r fiber.Router) {
	auth := serverutils.JwtMiddleware(c.tokens)
	h := r.Group("/measurements")
	h.Post("", c.Create)
	h.Get(":id", auth, c.Show)
	h.Post(":id/cancel", auth, c.Cancel)
	h.Post(":id/continue", auth, c.Continue)
	h.Post(":id/exit", auth, c.Exit)
	h.Get(":id/results", auth, c.Results)
}

func (c *measurementController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateMeasurementRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}
	res, err := c.service.Create(ctx.Context(), &req)
	if err != nil {
		return statusError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create measurement", res))
}

func (c *measurementController) Show(ctx *fiber.Ctx) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Get(ctx.Context(), id)
	if err != nil {
		return statusError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show measurement", res))
}

// Cancel opens the exit confirmation.
func (c *measurementController) Cancel(ctx *fiber.Ctx) error {
	return c.command(ctx, c.service.Cancel, "Exit confirmation opened")
}

// Continue dismisses the exit confirmation.
func (c *measurementController) Continue(ctx *fiber.Ctx) error {
	return c.command(ctx, c.service.Continue, "Measurement continued")
}

func (c *measurementController) Exit(ctx *fiber.Ctx) error {
	return c.command(ctx, c.service.Exit, "Measurement exited")
}

func (c *measurementController) Results(ctx *fiber.Ctx) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Results(ctx.Context(), id)
	if err != nil {
		return statusError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get results", res))
}

func (c *measurementController) command(ctx *fiber.Ctx, fn func(uuid.UUID) error, message string) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err := fn(id); err != nil {
		return statusError(err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse[any](message, nil))
}
