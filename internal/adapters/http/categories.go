package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-paas/internal/core/domain"
	"github.com/melih/lighthouse-paas/internal/core/grouping"
	"github.com/melih/lighthouse-paas/internal/core/ports"
)

type CategoryHandler struct {
	store      ports.CategoryStore
	containers ports.ContainerService
	log        logrus.FieldLogger
}

func NewCategoryHandler(store ports.CategoryStore, containers ports.ContainerService, log logrus.FieldLogger) *CategoryHandler {
	return &CategoryHandler{store: store, containers: containers, log: log}
}

func (h *CategoryHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.store.ListCategories(c.UserContext())
	if err != nil {
		return failWith(c, h.log, err, "Failed to list categories")
	}
	return c.JSON(fiber.Map{"categories": categories})
}

func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req domain.Category
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, statusError, "Invalid request body", nil)
	}
	created, err := h.store.CreateCategory(c.UserContext(), req)
	if err != nil {
		return failWith(c, h.log, err, "Failed to create category")
	}
	return respond(c, fiber.StatusCreated, statusSuccess, "Category created", fiber.Map{
		"id":       created.ID,
		"category": created,
	})
}

func (h *CategoryHandler) UpdateCategory(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return respond(c, fiber.StatusBadRequest, statusError, "Category id is required", nil)
	}
	var req domain.Category
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, statusError, "Invalid request body", nil)
	}
	req.ID = id
	updated, err := h.store.UpdateCategory(c.UserContext(), req)
	if err != nil {
		return failWith(c, h.log, err, "Failed to update category")
	}
	return respond(c, fiber.StatusOK, statusSuccess, "Category updated", fiber.Map{"category": updated})
}

func (h *CategoryHandler) DeleteCategory(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return respond(c, fiber.StatusBadRequest, statusError, "Category id is required", nil)
	}
	if err := h.store.DeleteCategory(c.UserContext(), id); err != nil {
		return failWith(c, h.log, err, "Failed to delete category")
	}
	return respond(c, fiber.StatusOK, statusSuccess, "Category deleted", nil)
}

// SaveOrder accepts the full {id: {position}} mapping produced by a reorder.
func (h *CategoryHandler) SaveOrder(c *fiber.Ctx) error {
	var req map[string]domain.OrderEntry
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, statusError, "Invalid request body", nil)
	}
	positions := make(map[string]int, len(req))
	for id, entry := range req {
		positions[id] = entry.Position
	}
	if err := h.store.SaveOrder(c.UserContext(), positions); err != nil {
		return failWith(c, h.log, err, "Failed to save category order")
	}
	return respond(c, fiber.StatusOK, statusSuccess, "Category order saved", nil)
}

// ListGroups returns live containers grouped by category, ready for display.
func (h *CategoryHandler) ListGroups(c *fiber.Ctx) error {
	containers, err := h.containers.ListContainers(c.UserContext())
	if err != nil {
		return failWith(c, h.log, err, "Failed to list containers")
	}
	categories, err := h.store.ListCategories(c.UserContext())
	if err != nil {
		return failWith(c, h.log, err, "Failed to list categories")
	}
	return c.JSON(fiber.Map{"groups": grouping.GroupContainers(containers, categories)})
}
