package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"moneybee/internal/apperr"
	"moneybee/internal/models"
)

// kindStatus maps error kinds to transport codes. Filter rejections never
// pass through here; the middleware emits 401 directly.
func kindStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidArgument:
		return fiber.StatusBadRequest
	case apperr.NotFound:
		return fiber.StatusNotFound
	case apperr.FailedPrecondition:
		return fiber.StatusConflict
	case apperr.PermissionDenied:
		return fiber.StatusForbidden
	case apperr.Aborted:
		return fiber.StatusConflict
	case apperr.Unavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func respondSuccess(c *fiber.Ctx, status int, data any, message string) error {
	var msg *string
	if message != "" {
		msg = &message
	}
	return c.Status(status).JSON(models.Envelope{
		Success: true,
		Data:    data,
		Message: msg,
	})
}

func respondFailure(c *fiber.Ctx, status int, message string, errs []string) error {
	return c.Status(status).JSON(models.Envelope{
		Success: false,
		Message: &message,
		Errors:  errs,
	})
}

// respondError maps an engine error into the envelope. Internal failures
// get a correlation id in both the log line and the client message so an
// operator can join the two.
func respondError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	message := apperr.MessageOf(err)

	if kind == apperr.Internal {
		correlationID := requestID(c)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		zap.L().Error("Request failed unexpectedly",
			zap.String("correlation_id", correlationID),
			zap.String("path", c.Path()),
			zap.Error(err))
		return respondFailure(c, fiber.StatusInternalServerError,
			"internal error (correlation id "+correlationID+")", nil)
	}

	return respondFailure(c, kindStatus(kind), message, nil)
}
