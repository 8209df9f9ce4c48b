package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-cart/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID    = "user_id"
	CtxEmail     = "email"
	CtxTokenHash = "token_hash"
	CtxTokenExp  = "token_exp"
)

// RevocationChecker reports whether a token hash was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// BearerToken returns the raw token of an "Authorization: Bearer" header.
func BearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

// JWTAuth validates the Bearer access token and stores the subject,
// email, token hash and expiry in the echo context. Tokens revoked by
// logout are rejected. revoked may be nil.
func JWTAuth(secret string, revoked RevocationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			hash := utils.HashToken(raw)
			if revoked != nil {
				gone, err := revoked.IsRevoked(c.Request().Context(), hash)
				if err != nil {
					c.Logger().Errorf("revocation lookup failed: %v", err)
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token check failed"})
				}
				if gone {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token revoked"})
				}
			}
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxEmail, claims.Email)
			c.Set(CtxTokenHash, hash)
			c.Set(CtxTokenExp, claims.Exp)
			return next(c)
		}
	}
}
