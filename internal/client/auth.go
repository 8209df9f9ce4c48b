package client

import (
	"context"
	"net/http"

	"github.com/iliyamo/cinema-ticket-cart/internal/session"
)

// Auth implements session.Authenticator against /v1/auth.
type Auth struct {
	c *Client
}

func NewAuth(c *Client) *Auth { return &Auth{c: c} }

func (a *Auth) Login(ctx context.Context, cr session.Credentials) (session.AuthResult, error) {
	var res session.AuthResult
	err := a.c.do(ctx, http.MethodPost, "/v1/auth/login", "", cr, &res)
	return res, err
}

func (a *Auth) Register(ctx context.Context, r session.Registration) (session.AuthResult, error) {
	var res session.AuthResult
	err := a.c.do(ctx, http.MethodPost, "/v1/auth/register", "", r, &res)
	return res, err
}

// ValidateToken reports false for a 401 and an error for anything else
// that is not a success.
func (a *Auth) ValidateToken(ctx context.Context, token string) (bool, error) {
	var res struct {
		Valid bool `json:"valid"`
	}
	err := a.c.do(ctx, http.MethodGet, "/v1/auth/validate", token, nil, &res)
	if IsStatus(err, http.StatusUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.Valid, nil
}

func (a *Auth) Logout(ctx context.Context, token string) error {
	return a.c.do(ctx, http.MethodPost, "/v1/auth/logout", token, nil, nil)
}

func (a *Auth) ChangePassword(ctx context.Context, token, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return a.c.do(ctx, http.MethodPost, "/v1/auth/password", token, body, nil)
}
