package engine

import "github.com/gofiber/fiber/v2"

// RegisterRecordRoutes mounts the record store under /api.
func RegisterRecordRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api", middleware...)

	api.Get("/:doctype", h.List)
	api.Post("/:doctype", h.Create)
	api.Post("/:doctype/import", h.Import)
	api.Get("/:doctype/:name", h.GetByName)
	api.Put("/:doctype/:name", h.Update)
	api.Delete("/:doctype/:name", h.Delete)
	api.Post("/:doctype/:name/submit", h.Submit)
	api.Post("/:doctype/:name/cancel", h.Cancel)
}
