// Package admin exposes the management surface: entity types, kafka hook
// definitions, broker settings, audit logs, and manual hook runs.
package admin

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"bulkhook-backend/internal/broker"
	"bulkhook-backend/internal/engine"
	"bulkhook-backend/internal/hook"
	"bulkhook-backend/internal/metadata"
	"bulkhook-backend/internal/queue"
	"bulkhook-backend/internal/store"
)

type Handler struct {
	store     *store.Store
	types     *metadata.Registry
	defs      *hook.DefinitionStore
	settings  *broker.SettingsStore
	audit     *hook.AuditLog
	queue     *queue.Queue
	publisher *hook.Publisher
}

func NewHandler(s *store.Store, types *metadata.Registry, defs *hook.DefinitionStore,
	settings *broker.SettingsStore, audit *hook.AuditLog, q *queue.Queue, publisher *hook.Publisher) *Handler {
	return &Handler{
		store:     s,
		types:     types,
		defs:      defs,
		settings:  settings,
		audit:     audit,
		queue:     q,
		publisher: publisher,
	}
}

// --- entity types ---

func (h *Handler) ListEntityTypes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.types.All()})
}

func (h *Handler) GetEntityType(c *fiber.Ctx) error {
	et := h.types.Get(c.Params("name"))
	if et == nil {
		return respondError(c, engine.UnknownEntityError(c.Params("name")))
	}
	return c.JSON(fiber.Map{"data": et})
}

func (h *Handler) SaveEntityType(c *fiber.Ctx) error {
	var et metadata.EntityType
	if err := c.BodyParser(&et); err != nil {
		return respondError(c, engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if et.Name == "" {
		return respondError(c, engine.ValidationError("Entity type name is required"))
	}
	if err := metadata.Save(c.UserContext(), h.store, h.types, &et); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": &et})
}

func (h *Handler) DeleteEntityType(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := metadata.Delete(c.UserContext(), h.store, h.types, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, engine.UnknownEntityError(name))
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"name": name}})
}

// --- kafka hooks ---

func (h *Handler) ListKafkaHooks(c *fiber.Ctx) error {
	hooks, err := h.defs.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": hooks})
}

func (h *Handler) GetKafkaHook(c *fiber.Ctx) error {
	def, err := h.defs.Get(c.UserContext(), c.Params("name"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, engine.NotFoundError("Kafka hook", c.Params("name")))
		}
		return err
	}
	return c.JSON(fiber.Map{"data": def})
}

func (h *Handler) SaveKafkaHook(c *fiber.Ctx) error {
	var def hook.KafkaHook
	if err := c.BodyParser(&def); err != nil {
		return respondError(c, engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if err := h.defs.Save(c.UserContext(), &def); err != nil {
		if errors.Is(err, hook.ErrInvalidDefinition) {
			return respondError(c, engine.ValidationError(err.Error()))
		}
		return err
	}
	return c.JSON(fiber.Map{"data": &def})
}

func (h *Handler) DeleteKafkaHook(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.defs.Delete(c.UserContext(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, engine.NotFoundError("Kafka hook", name))
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"name": name}})
}

// runRequest names the documents a hook should be executed against.
type runRequest struct {
	Doctype string   `json:"doctype"`
	Names   []string `json:"names"`
}

// RunKafkaHook enqueues a manual batch run of one hook over the named
// documents. Documents are re-resolved at execution time, so the batch
// observes current state rather than a snapshot.
func (h *Handler) RunKafkaHook(c *fiber.Ctx) error {
	hookName := c.Params("name")
	def, err := h.defs.Get(c.UserContext(), hookName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, engine.NotFoundError("Kafka hook", hookName))
		}
		return err
	}

	var req runRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if req.Doctype == "" || len(req.Names) == 0 {
		return respondError(c, engine.ValidationError("doctype and names are required"))
	}
	if req.Doctype != def.HookDoctype {
		return respondError(c, engine.ValidationError("doctype does not match hook doctype"))
	}

	names := req.Names
	ok := h.queue.Enqueue(func() {
		if err := h.publisher.RunBatch(context.Background(), hookName, req.Doctype, names, false); err != nil {
			log.Printf("ERROR: manual run of kafka hook %s: %v", hookName, err)
		}
	})
	if !ok {
		return respondError(c, engine.NewAppError("UNAVAILABLE", 503, "Dispatch queue is shutting down"))
	}

	return c.Status(202).JSON(fiber.Map{"data": fiber.Map{"queued": len(names)}})
}

// --- kafka settings ---

func (h *Handler) ListKafkaSettings(c *fiber.Ctx) error {
	all, err := h.settings.List(c.UserContext())
	if err != nil {
		return err
	}
	for _, s := range all {
		s.Password = ""
	}
	return c.JSON(fiber.Map{"data": all})
}

func (h *Handler) GetKafkaSettings(c *fiber.Ctx) error {
	s, err := h.settings.Get(c.UserContext(), c.Params("name"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, engine.NotFoundError("Kafka settings", c.Params("name")))
		}
		return err
	}
	s.Password = ""
	return c.JSON(fiber.Map{"data": s})
}

func (h *Handler) SaveKafkaSettings(c *fiber.Ctx) error {
	var s broker.Settings
	if err := c.BodyParser(&s); err != nil {
		return respondError(c, engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if s.Name == "" || s.RestURL == "" {
		return respondError(c, engine.ValidationError("name and rest_url are required"))
	}
	if err := h.settings.Save(c.UserContext(), &s); err != nil {
		return err
	}
	s.Password = ""
	return c.JSON(fiber.Map{"data": &s})
}

func (h *Handler) DeleteKafkaSettings(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.settings.Delete(c.UserContext(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, engine.NotFoundError("Kafka settings", name))
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"name": name}})
}

// --- logs ---

func (h *Handler) ListHookLogs(c *fiber.Ctx) error {
	logs, err := h.audit.List(c.UserContext(), c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": logs})
}

func respondError(c *fiber.Ctx, appErr *engine.AppError) error {
	return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
}

// RegisterAdminRoutes mounts the management surface.
func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	grp := app.Group("/", middleware...)

	grp.Get("/_entity_types", h.ListEntityTypes)
	grp.Post("/_entity_types", h.SaveEntityType)
	grp.Get("/_entity_types/:name", h.GetEntityType)
	grp.Put("/_entity_types/:name", h.SaveEntityType)
	grp.Delete("/_entity_types/:name", h.DeleteEntityType)

	grp.Get("/_kafka_hooks", h.ListKafkaHooks)
	grp.Post("/_kafka_hooks", h.SaveKafkaHook)
	grp.Get("/_kafka_hooks/:name", h.GetKafkaHook)
	grp.Put("/_kafka_hooks/:name", h.SaveKafkaHook)
	grp.Delete("/_kafka_hooks/:name", h.DeleteKafkaHook)
	grp.Post("/_kafka_hooks/:name/run", h.RunKafkaHook)

	grp.Get("/_kafka_settings", h.ListKafkaSettings)
	grp.Post("/_kafka_settings", h.SaveKafkaSettings)
	grp.Get("/_kafka_settings/:name", h.GetKafkaSettings)
	grp.Put("/_kafka_settings/:name", h.SaveKafkaSettings)
	grp.Delete("/_kafka_settings/:name", h.DeleteKafkaSettings)

	grp.Get("/_hook_logs", h.ListHookLogs)
}
