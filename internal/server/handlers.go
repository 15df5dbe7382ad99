package server

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"moneybee/internal/models"
	"moneybee/internal/transfer"
)

func (s *Server) handleCreateTransfer(c *fiber.Ctx) error {
	var req models.CreateTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return respondFailure(c, fiber.StatusBadRequest, "malformed request body", nil)
	}
	if errs := s.validateStruct(req); errs != nil {
		return respondFailure(c, fiber.StatusUnprocessableEntity, "validation failed", errs)
	}

	created, err := s.cfg.Engine.Create(c.UserContext(), transfer.CreateRequest{
		SenderNationalID:   req.SenderNationalID,
		ReceiverNationalID: req.ReceiverNationalID,
		Amount:             req.Amount,
		Currency:           req.Currency,
		Description:        req.Description,
		IdempotencyKey:     c.Get(s.cfg.HTTP.IdempotencyHeader),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondSuccess(c, fiber.StatusCreated, created, "transfer created")
}

func (s *Server) handleCompleteTransfer(c *fiber.Ctx) error {
	var req models.CompleteTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return respondFailure(c, fiber.StatusBadRequest, "malformed request body", nil)
	}
	if errs := s.validateStruct(req); errs != nil {
		return respondFailure(c, fiber.StatusBadRequest, "validation failed", errs)
	}

	completed, err := s.cfg.Engine.Complete(c.UserContext(), c.Params("code"), req.ReceiverNationalID)
	if err != nil {
		return respondError(c, err)
	}
	return respondSuccess(c, fiber.StatusOK, completed, "transfer completed")
}

func (s *Server) handleCancelTransfer(c *fiber.Ctx) error {
	var req models.CancelTransferRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondFailure(c, fiber.StatusBadRequest, "malformed request body", nil)
		}
		if errs := s.validateStruct(req); errs != nil {
			return respondFailure(c, fiber.StatusBadRequest, "validation failed", errs)
		}
	}

	cancelled, err := s.cfg.Engine.Cancel(c.UserContext(), c.Params("code"), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return respondSuccess(c, fiber.StatusOK, cancelled, "transfer cancelled")
}

func (s *Server) handleGetTransfer(c *fiber.Ctx) error {
	found, err := s.cfg.Engine.GetByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return respondError(c, err)
	}
	return respondSuccess(c, fiber.StatusOK, found, "")
}

func (s *Server) handleListCustomerTransfers(c *fiber.Ctx) error {
	customerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondFailure(c, fiber.StatusBadRequest, "invalid customer id", nil)
	}

	transfers, err := s.cfg.Engine.ListCustomerTransfers(c.UserContext(), customerID)
	if err != nil {
		return respondError(c, err)
	}
	return respondSuccess(c, fiber.StatusOK, transfers, "")
}

func (s *Server) handleDailyLimit(c *fiber.Ctx) error {
	customerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondFailure(c, fiber.StatusBadRequest, "invalid customer id", nil)
	}

	status, err := s.cfg.Engine.DailyLimit(c.UserContext(), customerID)
	if err != nil {
		return respondError(c, err)
	}
	return respondSuccess(c, fiber.StatusOK, status, "")
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	health := models.HealthStatus{Status: "ok", Checks: make(map[string]string)}
	for name, check := range s.cfg.HealthChecks {
		if err := check(c.UserContext()); err != nil {
			health.Status = "degraded"
			health.Checks[name] = err.Error()
			continue
		}
		health.Checks[name] = "ok"
	}
	return respondSuccess(c, fiber.StatusOK, health, "")
}

// validateStruct runs the validator tags and flattens failures into
// field-level messages for the envelope's errors list.
func (s *Server) validateStruct(v any) []string {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, fieldErr.Field()+" failed on "+fieldErr.Tag())
	}
	return messages
}
