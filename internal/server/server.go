package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"moneybee/internal/auth"
	"moneybee/internal/metrics"
	"moneybee/internal/models"
	"moneybee/internal/transfer"
)

// Config wires the HTTP server's dependencies.
type Config struct {
	HTTP   models.HTTPConfig
	Auth   models.AuthConfig
	Engine *transfer.Service
	Filter *auth.Filter
	// HealthChecks are named dependency probes run by the health endpoint.
	HealthChecks map[string]func(ctx context.Context) error
}

// Server is the fiber app exposing the transfer API behind the admission
// filter, plus the unauthenticated health and metrics endpoints.
type Server struct {
	app      *fiber.App
	cfg      Config
	validate *validator.Validate
}

func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("transfer engine cannot be nil")
	}
	if cfg.Filter == nil {
		return nil, fmt.Errorf("admission filter cannot be nil")
	}

	s := &Server{
		cfg:      cfg,
		validate: validator.New(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "moneybee",
		DisableStartupMessage: true,
		ErrorHandler:          s.fiberErrorHandler,
	})

	app.Use(requestLogger())

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api")
	admitted := apiKeyMiddleware(cfg.Filter, cfg.Auth)

	api.Post("/transfers", admitted, s.handleCreateTransfer)
	api.Post("/transfers/:code/complete", admitted, s.handleCompleteTransfer)
	api.Post("/transfers/:code/cancel", admitted, s.handleCancelTransfer)
	api.Get("/transfers/customer/:id", s.handleListCustomerTransfers)
	api.Get("/transfers/daily-limit/:id", s.handleDailyLimit)
	api.Get("/transfers/:code", s.handleGetTransfer)

	s.app = app
	return s, nil
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(s.cfg.HTTP.ShutdownTimeout)
}

// fiberErrorHandler catches errors fiber raises itself (unmatched routes,
// oversized bodies) and keeps them inside the response envelope.
func (s *Server) fiberErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	return respondFailure(c, code, message, nil)
}
