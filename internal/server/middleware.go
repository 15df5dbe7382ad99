package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"moneybee/internal/apperr"
	"moneybee/internal/auth"
	"moneybee/internal/models"
)

const requestIDKey = "request_id"

// requestID returns the correlation id stamped by requestLogger.
func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// requestLogger stamps every request with a correlation id (caller-provided
// X-Request-Id or a fresh uuid), echoes it back, and logs the outcome.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		c.Locals(requestIDKey, id)
		c.Set("X-Request-Id", id)

		start := time.Now()
		err := c.Next()

		zap.L().Info("Request handled",
			zap.String("request_id", id),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)))
		return err
	}
}

// apiKeyMiddleware guards mutating routes behind the admission filter.
// Rejections short-circuit as 401 with the filter's message; the envelope is
// reserved for requests that made it past admission.
func apiKeyMiddleware(filter *auth.Filter, cfg models.AuthConfig) fiber.Handler {
	bypass := make(map[string]bool, len(cfg.BypassPaths))
	for _, path := range cfg.BypassPaths {
		bypass[path] = true
	}

	return func(c *fiber.Ctx) error {
		if bypass[c.Path()] {
			return c.Next()
		}

		apiKey := c.Get(cfg.Header)
		if err := filter.Admit(c.UserContext(), apiKey); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": apperr.MessageOf(err),
			})
		}
		return c.Next()
	}
}
