package controller

import (
	"errors"

	"vitals-scan-be/internal/service"
	"vitals-scan-be/pkg/capture"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// statusError maps service errors to HTTP errors. Unknown errors pass
// through and end up as 500.
func statusError(err error) error {
	switch {
	case errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrMeasurementNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidBirthDate):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrMeasurementNotLive),
		errors.Is(err, service.ErrMeasurementFinished),
		errors.Is(err, service.ErrResultsNotReady),
		errors.Is(err, capture.ErrSessionBusy):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}

func paramID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid id")
	}
	return id, nil
}
