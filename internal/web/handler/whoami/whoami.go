// Package whoami provides an endpoint reporting the caller's principal.
package whoami

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/plandes/pamauth/internal/config"
	"github.com/plandes/pamauth/internal/web/handler"
	authmiddleware "github.com/plandes/pamauth/internal/web/middleware/auth"
	"github.com/plandes/pamauth/internal/web/session"
)

const (
	// Path is the path of the whoami endpoint.
	Path = "/whoami"
)

// Response is the whoami response body.
type Response struct {
	Principal string `json:"principal,omitempty"`
}

// Service is the whoami handler service.
type Service struct {
	handler.Service
	cfg *config.Config
}

// Handler is the whoami handler.
var Handler = Service{}

// Init initializes the whoami handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config) error {
	if app == nil || cfg == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg

	app.Get(Path, s.Get)

	return nil
}

// Get reports the authenticated principal, either set by the remote-user
// middleware or read from the session written by a credential login.
func (s *Service) Get(c *fiber.Ctx) error {
	if name, ok := c.Locals(authmiddleware.PrincipalLocal).(string); ok && name != "" {
		return c.JSON(Response{Principal: name})
	}

	sessionID := c.Cookies("session")
	if sessionID != "" {
		data := new(session.Data)
		if err := data.Read(sessionID); err == nil && data.Auth != nil {
			return c.JSON(Response{Principal: data.Auth.Principal.Name})
		}
	}

	return c.Status(fiber.StatusUnauthorized).JSON(Response{})
}
