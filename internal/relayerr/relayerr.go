// Package relayerr defines the relay's domain error-code taxonomy.
//
// The teacher server expresses this same concern with a sibling protocol
// module (apierrors.Code) shared between its server and client. That module
// is a private sibling repository and cannot be fetched here, so this
// package reimplements the same shape in-tree: a typed error code plus an
// HTTP status mapping, matching httputil.Fail's call signature.
package relayerr

import "github.com/gofiber/fiber/v3"

// Code identifies a category of relay failure in API and pipeline responses.
type Code string

const (
	NotFound           Code = "NOT_FOUND"
	ValidationError    Code = "VALIDATION_ERROR"
	Unauthorized       Code = "UNAUTHORIZED"
	TokenExpired       Code = "TOKEN_EXPIRED"
	Forbidden          Code = "FORBIDDEN"
	Conflict           Code = "CONFLICT"
	RateLimited        Code = "RATE_LIMITED"
	ServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	InternalError      Code = "INTERNAL_ERROR"

	// Relay policy codes (spec.md §7's message-pipeline rejection taxonomy).
	NotSubscribed         Code = "NOT_SUBSCRIBED"
	GuildBanned           Code = "GUILD_BANNED"
	RoomInactive          Code = "ROOM_INACTIVE"
	TooLong               Code = "TOO_LONG"
	UrlsDisallowed        Code = "URLS_DISALLOWED"
	AttachmentsDisallowed Code = "ATTACHMENTS_DISALLOWED"
	BannedWord            Code = "BANNED_WORD"
)

// StatusForCode maps a Code to its default HTTP status when no more specific status applies.
func StatusForCode(code Code) int {
	switch code {
	case NotFound, NotSubscribed:
		return fiber.StatusNotFound
	case ValidationError, TooLong, UrlsDisallowed, AttachmentsDisallowed, BannedWord:
		return fiber.StatusBadRequest
	case Unauthorized, TokenExpired:
		return fiber.StatusUnauthorized
	case Forbidden, GuildBanned, RoomInactive:
		return fiber.StatusForbidden
	case Conflict:
		return fiber.StatusConflict
	case RateLimited:
		return fiber.StatusTooManyRequests
	case ServiceUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
