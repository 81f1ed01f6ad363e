package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/plandes/pamauth/internal/auth"
	"github.com/plandes/pamauth/internal/config"
	"github.com/plandes/pamauth/internal/web/handler"
	"github.com/plandes/pamauth/internal/web/session"
)

const (
	// Path is the path of the login endpoint.
	Path = "/login"
)

// Request is the login request body.
type Request struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Response is the login response body.
type Response struct {
	Principal string `json:"principal,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg   *config.Config
	coord *auth.Coordinator
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, coord *auth.Coordinator) error {
	if app == nil || cfg == nil || coord == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.coord = coord

	app.Route(Path, func(router fiber.Router) {
		router.Post(handler.RouterRootPath, s.Post)
	})

	return nil
}

// Post handles the login submission.
func (s *Service) Post(c *fiber.Ctx) error {
	req := new(Request)

	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(Response{Error: ErrInvalidFormData.Error()})
	}

	result := s.coord.Authenticate(c.UserContext(), s.cfg.Wiki.ID, req.Username, req.Password)

	switch result.Outcome {
	case auth.OutcomeAuthenticated:
		// fall through to the session write below
	case auth.OutcomeDenied:
		return c.Status(fiber.StatusUnauthorized).
			JSON(Response{Reason: result.Reason, Error: ErrInvalidCredentials.Error()})
	default:
		log.Error().Err(result.Err).Str("username", req.Username).Msg("login failed")
		return c.Status(fiber.StatusInternalServerError).
			JSON(Response{Error: ErrInternalServerError.Error()})
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")
		return c.Status(fiber.StatusInternalServerError).
			JSON(Response{Error: ErrInternalServerError.Error()})
	}

	userSession := &session.Data{
		Auth: &auth.Record{Principal: result.Principal, RemoteUser: req.Username},
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return c.Status(fiber.StatusInternalServerError).
			JSON(Response{Error: ErrInternalServerError.Error()})
	}

	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax", // TODO: make this configurable
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	return c.JSON(Response{Principal: result.Principal.Name})
}
