package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/plandes/pamauth/internal/auth"
	"github.com/plandes/pamauth/internal/config"
)

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, cfg *config.Config, coord *auth.Coordinator) error
}
