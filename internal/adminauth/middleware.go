package adminauth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/uncord-chat/relay/internal/httputil"
	"github.com/uncord-chat/relay/internal/relayerr"
)

// localsClaimsKey is the fiber.Ctx Locals key the middleware stores validated Claims under.
const localsClaimsKey = "adminClaims"

// RequireAdmin returns Fiber middleware that validates a Bearer admin token and rejects the request if it is
// missing, malformed, expired, or revoked.
func RequireAdmin(svc *Service) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			return httputil.Fail(c, fiber.StatusUnauthorized, relayerr.Unauthorized, "missing or malformed authorization header")
		}
		tokenStr := strings.TrimPrefix(header, prefix)

		claims, err := svc.Validate(c, tokenStr)
		if err != nil {
			if errors.Is(err, ErrSessionRevoked) {
				return httputil.Fail(c, fiber.StatusUnauthorized, relayerr.TokenExpired, "session has been revoked")
			}
			return httputil.Fail(c, fiber.StatusUnauthorized, relayerr.Unauthorized, "invalid or expired token")
		}

		c.Locals(localsClaimsKey, claims)
		c.Locals("adminUsername", claims.Subject)
		return c.Next()
	}
}

// ClaimsFromContext retrieves the validated Claims stashed by RequireAdmin.
func ClaimsFromContext(c fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(localsClaimsKey).(*Claims)
	return claims, ok
}
