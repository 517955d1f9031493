package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/uncord-chat/relay/internal/adminauth"
	"github.com/uncord-chat/relay/internal/httputil"
	"github.com/uncord-chat/relay/internal/relayerr"
)

// AuthHandler serves the Admin API's login/logout endpoints.
type AuthHandler struct {
	auth *adminauth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *adminauth.Service) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body loginRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid request body")
	}
	if body.Username == "" || body.Password == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "username and password are required")
	}

	token, err := h.auth.Login(c, body.Username, body.Password)
	if err != nil {
		if errors.Is(err, adminauth.ErrInvalidCredentials) {
			return httputil.Fail(c, fiber.StatusUnauthorized, relayerr.Unauthorized, "invalid credentials")
		}
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "login failed")
	}

	return httputil.Success(c, fiber.Map{"access_token": token})
}

// Logout handles POST /api/v1/auth/logout, revoking the session behind the bearer token in use.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	header := c.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "missing authorization header")
	}
	tokenStr := header[len(prefix):]

	if err := h.auth.Logout(c, tokenStr); err != nil {
		return httputil.Fail(c, fiber.StatusUnauthorized, relayerr.Unauthorized, "invalid token")
	}
	return httputil.Success(c, fiber.Map{"message": "logged out"})
}
