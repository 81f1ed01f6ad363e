package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/plandes/pamauth/internal/auth"
	"github.com/plandes/pamauth/internal/config"
	"github.com/plandes/pamauth/internal/web/session"
)

const (
	// DefaultHeader is the request header consulted for the asserted
	// remote user when no header is configured.
	DefaultHeader = "Remote-User"

	// PrincipalLocal is the fiber.Locals key the authenticated principal
	// name is stored under.
	PrincipalLocal = "Principal"
)

// Middleware returns a Fiber middleware that authenticates requests carrying
// an asserted remote user. Requests without the header pass through
// unauthenticated; a denied or failed check is logged and the request
// continues without a principal.
func Middleware(cfg *config.Config, coord *auth.Coordinator) fiber.Handler {
	header := cfg.PAM.HTTPHeader
	if header == "" {
		header = DefaultHeader
	}

	return func(c *fiber.Ctx) error {
		remoteUser := c.Get(header)
		if remoteUser == "" {
			return c.Next()
		}

		sessionID := c.Cookies("session")
		if sessionID == "" {
			var err error

			sessionID, err = session.GenerateSessionID()
			if err != nil {
				log.Error().Err(err).Msg("failed to generate session ID")
				return c.Next()
			}

			cookie := &fiber.Cookie{
				Name:     "session",
				Value:    sessionID,
				MaxAge:   int(cfg.Webserver.Session.ExpiryTime.Seconds()),
				Secure:   true,
				HTTPOnly: true,
				SameSite: "Lax",
			}
			if cfg.DevMode {
				cookie.Secure = false
			}

			c.Cookie(cookie)
		}

		cache := session.NewCache(sessionID, cfg.Webserver.Session.ExpiryTime)

		result := coord.CheckAuthSSO(c.UserContext(), cache, cfg.Wiki.ID, remoteUser)

		switch {
		case result.OK():
			c.Locals(PrincipalLocal, result.Principal.Name)
		case result.Outcome == auth.OutcomeError:
			log.Error().Err(result.Err).Str("remoteUser", remoteUser).
				Msg("remote user check failed")
		default:
			log.Debug().Str("remoteUser", remoteUser).Str("reason", result.Reason).
				Msg("remote user denied")
		}

		return c.Next()
	}
}
