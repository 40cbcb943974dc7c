package engine

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"bulkhook-backend/internal/hook"
)

// Handler exposes the record store over HTTP. Each request is one unit
// of work: dedup state lives on the DispatchContext created here.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /api/:doctype
func (h *Handler) List(c *fiber.Ctx) error {
	records, err := h.service.List(c.UserContext(), c.Params("doctype"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": records})
}

// GetByName handles GET /api/:doctype/:name
func (h *Handler) GetByName(c *fiber.Ctx) error {
	rec, err := h.service.Get(c.UserContext(), c.Params("doctype"), c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": rec})
}

// Create handles POST /api/:doctype
func (h *Handler) Create(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	dc := hook.NewDispatchContext(true)
	rec, err := h.service.Create(c.UserContext(), dc, c.Params("doctype"), body)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"data": rec})
}

// Update handles PUT /api/:doctype/:name
func (h *Handler) Update(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	dc := hook.NewDispatchContext(true)
	rec, err := h.service.Update(c.UserContext(), dc, c.Params("doctype"), c.Params("name"), body)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": rec})
}

// Submit handles POST /api/:doctype/:name/submit
func (h *Handler) Submit(c *fiber.Ctx) error {
	dc := hook.NewDispatchContext(true)
	rec, err := h.service.Submit(c.UserContext(), dc, c.Params("doctype"), c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": rec})
}

// Cancel handles POST /api/:doctype/:name/cancel
func (h *Handler) Cancel(c *fiber.Ctx) error {
	dc := hook.NewDispatchContext(true)
	rec, err := h.service.Cancel(c.UserContext(), dc, c.Params("doctype"), c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": rec})
}

// Delete handles DELETE /api/:doctype/:name
func (h *Handler) Delete(c *fiber.Ctx) error {
	dc := hook.NewDispatchContext(true)
	if err := h.service.Delete(c.UserContext(), dc, c.Params("doctype"), c.Params("name")); err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"name": c.Params("name")}})
}

// Import handles POST /api/:doctype/import — bulk insert with dispatch
// suppressed.
func (h *Handler) Import(c *fiber.Ctx) error {
	var body []map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body (expected array)"))
	}

	count, err := h.service.Import(c.UserContext(), c.Params("doctype"), body)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"imported": count}})
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

func handleServiceError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}
	return err
}
