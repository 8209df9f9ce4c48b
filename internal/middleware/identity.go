package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-cart/internal/utils"
)

// UserID returns the authenticated user id set by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxUserID).(uint64)
	return id, ok && id != 0
}

// userKey is the user part of a rate-limit key. The limiter runs before
// JWTAuth, so an unverified bearer token is keyed by a prefix of its hash;
// without either the caller is "guest".
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	if raw, ok := BearerToken(c); ok {
		return "t" + utils.HashToken(raw)[:16]
	}
	return "guest"
}
