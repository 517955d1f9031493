package relayerr

import (
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestStatusForCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want int
	}{
		{NotFound, fiber.StatusNotFound},
		{NotSubscribed, fiber.StatusNotFound},
		{ValidationError, fiber.StatusBadRequest},
		{TooLong, fiber.StatusBadRequest},
		{UrlsDisallowed, fiber.StatusBadRequest},
		{AttachmentsDisallowed, fiber.StatusBadRequest},
		{BannedWord, fiber.StatusBadRequest},
		{Unauthorized, fiber.StatusUnauthorized},
		{TokenExpired, fiber.StatusUnauthorized},
		{Forbidden, fiber.StatusForbidden},
		{GuildBanned, fiber.StatusForbidden},
		{RoomInactive, fiber.StatusForbidden},
		{Conflict, fiber.StatusConflict},
		{RateLimited, fiber.StatusTooManyRequests},
		{ServiceUnavailable, fiber.StatusServiceUnavailable},
		{InternalError, fiber.StatusInternalServerError},
		{Code("unknown"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			t.Parallel()
			if got := StatusForCode(tt.code); got != tt.want {
				t.Errorf("StatusForCode(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
