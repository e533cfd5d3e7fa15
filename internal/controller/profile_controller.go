package controller

import (
	"vitals-scan-be/internal/dto"
	"vitals-scan-be/internal/pkg/serverutils"
	"vitals-scan-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IProfileController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	UpdateGoals(ctx *fiber.Ctx) error
	UpdateDemographics(ctx *fiber.Ctx) error
	UpdateActivity(ctx *fiber.Ctx) error
}

type profileController struct {
	service service.IProfileService
}

func NewProfileController(service service.IProfileService) IProfileController {
	return &profileController{service: service}
}

func (c *profileController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/profiles")
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Delete)
	h.Put(":id/goals", c.UpdateGoals)
	h.Put(":id/demographics", c.UpdateDemographics)
	h.Put(":id/activity", c.UpdateActivity)
}

func (c *profileController) Create(ctx *fiber.Ctx) error {
	res, err := c.service.Create(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create profile", res))
}

func (c *profileController) Show(ctx *fiber.Ctx) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Get(ctx.Context(), id)
	if err != nil {
		return statusError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show profile", res))
}

// Delete resets the questionnaire.
func (c *profileController) Delete(ctx *fiber.Ctx) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err := c.service.Delete(ctx.Context(), id); err != nil {
		return statusError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete profile", nil))
}

func (c *profileController) UpdateGoals(ctx *fiber.Ctx) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var req dto.UpdateGoalsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	res, err := c.service.UpdateGoals(ctx.Context(), id, &req)
	if err != nil {
		return statusError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update goals", res))
}

func (c *profileController) UpdateDemographics(ctx *fiber.Ctx) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var req dto.UpdateDemographicsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	res, err := c.service.UpdateDemographics(ctx.Context(), id, &req)
	if err != nil {
		return statusError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update demographics", res))
}

func (c *profileController) UpdateActivity(ctx *fiber.Ctx) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var req dto.UpdateActivityRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	res, err := c.service.UpdateActivity(ctx.Context(), id, &req)
	if err != nil {
		return statusError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update activity", res))
}
