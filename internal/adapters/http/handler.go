package http

import (
	"errors"
	"strings"

	"github.com/docker/docker/errdefs"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-paas/internal/core/domain"
	"github.com/melih/lighthouse-paas/internal/core/ports"
)

const (
	statusSuccess = "success"
	statusError   = "error"
	defaultTail   = 200
)

type ContainerHandler struct {
	service ports.ContainerService
	builder ports.BuilderService
	configs ports.ConfigStore
	log     logrus.FieldLogger
}

func NewContainerHandler(service ports.ContainerService, builder ports.BuilderService, configs ports.ConfigStore, log logrus.FieldLogger) *ContainerHandler {
	return &ContainerHandler{service: service, builder: builder, configs: configs, log: log}
}

type containerList struct {
	Containers []domain.Container `json:"containers"`
}

// ListContainers returns containers keyed by their raw (pre-category) group.
func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.ListContainers(c.UserContext())
	if err != nil {
		return h.fail(c, err, "Failed to list containers")
	}

	byGroup := make(map[string]*containerList)
	for _, ct := range containers {
		group := ct.Group
		if group == "" {
			group = domain.DefaultGroup
		}
		if byGroup[group] == nil {
			byGroup[group] = &containerList{Containers: []domain.Container{}}
		}
		byGroup[group].Containers = append(byGroup[group].Containers, ct)
	}
	return c.JSON(byGroup)
}

func (h *ContainerHandler) InstallContainer(c *fiber.Ctx) error {
	var req domain.InstallRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, statusError, "Invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return respond(c, fiber.StatusBadRequest, statusError, capitalize(err.Error()), nil)
	}

	if req.RepoURL != "" {
		if h.builder == nil {
			return respond(c, fiber.StatusNotImplemented, statusError, "Building from source is not available", nil)
		}
		// Blocks until the build finishes.
		if _, err := h.builder.BuildImage(c.UserContext(), domain.BuildRequest{
			RepoURL: req.RepoURL,
			Ref:     req.Ref,
			Image:   req.Image,
		}); err != nil {
			return h.fail(c, err, "Build failed")
		}
	}

	id, err := h.service.InstallContainer(c.UserContext(), req.Image, req.Name)
	if err != nil {
		return h.fail(c, err, "Install failed")
	}
	return respond(c, fiber.StatusCreated, statusSuccess, "Container installed", fiber.Map{
		"id":    id,
		"image": req.Image,
	})
}

func (h *ContainerHandler) ToggleContainer(c *fiber.Ctx) error {
	name := c.Params("name")
	state, err := h.service.ToggleContainer(c.UserContext(), name)
	if err != nil {
		return h.fail(c, err, "Failed to toggle "+name)
	}
	verb := "started"
	if state == domain.StatusStopped {
		verb = "stopped"
	}
	return respond(c, fiber.StatusOK, statusSuccess, "Container "+name+" "+verb, fiber.Map{"state": state})
}

func (h *ContainerHandler) UpdateContainer(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.service.UpdateContainer(c.UserContext(), name); err != nil {
		return h.fail(c, err, "Failed to update "+name)
	}
	return respond(c, fiber.StatusOK, statusSuccess, "Container "+name+" updated", nil)
}

func (h *ContainerHandler) RestartContainer(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.service.RestartContainer(c.UserContext(), name); err != nil {
		return h.fail(c, err, "Failed to restart "+name)
	}
	return respond(c, fiber.StatusOK, statusSuccess, "Container "+name+" restarted", nil)
}

func (h *ContainerHandler) GetContainerLogs(c *fiber.Ctx) error {
	name := c.Params("name")
	tail := c.QueryInt("tail", defaultTail)

	logs, err := h.service.GetContainerLogs(c.UserContext(), name, tail)
	if err != nil {
		return h.fail(c, err, "Failed to get logs of "+name)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	// fasthttp closes the stream once it has been sent.
	return c.SendStream(logs)
}

func (h *ContainerHandler) GetContainerConfig(c *fiber.Ctx) error {
	name := c.Params("name")
	body, err := h.configs.GetConfig(c.UserContext(), name)
	if err != nil {
		return h.fail(c, err, "No configuration for "+name)
	}
	return respond(c, fiber.StatusOK, statusSuccess, "", fiber.Map{"config": body})
}

type configRequest struct {
	Config *string `json:"config"`
}

func (h *ContainerHandler) SaveContainerConfig(c *fiber.Ctx) error {
	name := c.Params("name")
	var req configRequest
	if err := c.BodyParser(&req); err != nil || req.Config == nil {
		return respond(c, fiber.StatusBadRequest, statusError, "Missing config", nil)
	}
	if err := h.configs.PutConfig(c.UserContext(), name, *req.Config); err != nil {
		return h.fail(c, err, "Failed to save configuration")
	}
	return respond(c, fiber.StatusOK, statusSuccess, "Configuration saved", nil)
}

func (h *ContainerHandler) Health(c *fiber.Ctx) error {
	if err := h.service.Ping(c.UserContext()); err != nil {
		h.log.WithError(err).Warn("Health check failed")
		return respond(c, fiber.StatusServiceUnavailable, statusError, err.Error(), fiber.Map{"docker": "unreachable"})
	}
	return respond(c, fiber.StatusOK, statusSuccess, "", fiber.Map{"docker": "ok"})
}

func (h *ContainerHandler) fail(c *fiber.Ctx, err error, message string) error {
	return failWith(c, h.log, err, message)
}

func failWith(c *fiber.Ctx, log logrus.FieldLogger, err error, message string) error {
	code := statusFor(err)
	entry := log.WithError(err).WithFields(logrus.Fields{"path": c.Path(), "status": code})
	if code >= fiber.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Warn(message)
	}
	return respond(c, code, statusError, message+": "+err.Error(), nil)
}

// respond writes the {status, message} envelope plus any extra fields.
func respond(c *fiber.Ctx, code int, status, message string, extra fiber.Map) error {
	body := fiber.Map{"status": status, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(code).JSON(body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errdefs.IsNotFound(err):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateName), errdefs.IsConflict(err):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidCategory), errors.Is(err, domain.ErrReservedID), errdefs.IsInvalidParameter(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
