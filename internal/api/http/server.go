package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// NewFiber создаёт fiber-приложение с кодеком json-iterator.
func NewFiber() *fiber.App {
	return fiber.New(
		fiber.Config{
			AppName:               "Quality Vision",
			BodyLimit:             1024 * 1024,
			StrictRouting:         true,
			CaseSensitive:         true,
			DisableStartupMessage: true,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
		})
}

type ServerOption func(*Server) error

// Server HTTP-панель управления
type Server struct {
	engine    *fiber.App
	log       *logrus.Logger
	validator *validator.Validate
	handler   *Handler
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, errors.New("fiber app is required")
	}
	if server.log == nil {
		return nil, errors.New("logger is required")
	}
	if server.handler == nil {
		return nil, errors.New("handler is required")
	}
	if server.validator == nil {
		server.validator = validator.New()
	}
	server.handler.validator = server.validator

	server.engine.Use(NewRequestIDMiddleware())
	server.engine.Use(NewLoggingMiddleware(server.log))
	server.setupHealthCheck()
	server.handler.Start(server.engine.Group("/api/v1"))

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(v *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = v
		return nil
	}
}

func WithHandler(h *Handler) ServerOption {
	return func(s *Server) error {
		if h == nil {
			return errors.New("nil handler")
		}
		s.handler = h
		return nil
	}
}

// App возвращает fiber-приложение
func (s *Server) App() *fiber.App {
	return s.engine
}

// Run слушает порт до вызова Shutdown.
func (s *Server) Run(port string) error {
	if port == "" {
		port = "3000"
	}
	s.log.WithField("port", port).Info("HTTP server listening")
	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.engine.ShutdownWithContext(ctx)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
