// Package auth provides the remote-user authentication middleware.
//
// The middleware reads the asserted remote user from a configurable request
// header and hands it to the authentication coordinator, which reuses the
// session's cached principal when the asserted token has not changed. The
// resulting principal name is stored in fiber.Locals for handlers.
//
// Usage:
//
//	app.Use(authmiddleware.Middleware(cfg, coord))
//
// Requests without the header pass through unauthenticated; the middleware
// never rejects a request itself.
package auth
