package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Handlers bundles everything the API routes need.
type Handlers struct {
	Containers *ContainerHandler
	Categories *CategoryHandler
	Proxy      *ProxyHandler
}

// NewApp returns a fiber app with all dashboard routes registered.
func NewApp(h Handlers, log logrus.FieldLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		// Params and queries are handed to ports that may keep them past the request.
		Immutable:    true,
		ErrorHandler: errorHandler(log),
	})
	app.Use(requestLogger(log))
	if h.Proxy != nil {
		app.Use(h.Proxy.ProxyRequest)
	}

	api := app.Group("/api")
	api.Get("/health", h.Containers.Health)

	api.Get("/containers", h.Containers.ListContainers)
	api.Post("/install", h.Containers.InstallContainer)
	api.Post("/toggle/:name", h.Containers.ToggleContainer)
	api.Post("/update/:name", h.Containers.UpdateContainer)

	container := api.Group("/container/:name")
	container.Get("/config", h.Containers.GetContainerConfig)
	container.Post("/config", h.Containers.SaveContainerConfig)
	container.Post("/restart", h.Containers.RestartContainer)
	container.Get("/logs", h.Containers.GetContainerLogs)

	api.Get("/groups", h.Categories.ListGroups)
	api.Get("/categories", h.Categories.ListCategories)
	api.Post("/categories", h.Categories.CreateCategory)
	api.Put("/categories", h.Categories.UpdateCategory)
	api.Delete("/categories", h.Categories.DeleteCategory)
	api.Post("/categories/order", h.Categories.SaveOrder)

	return app
}

func requestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		entry := log.WithFields(logrus.Fields{
			"method":  c.Method(),
			"path":    c.Path(),
			"status":  status,
			"latency": time.Since(start).String(),
		})
		if status >= fiber.StatusInternalServerError {
			entry.Warn("Request failed")
		} else {
			entry.Debug("Request handled")
		}
		return err
	}
}

func errorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithField("path", c.Path()).Error("Unhandled error")
		}
		return respond(c, code, statusError, err.Error(), nil)
	}
}
