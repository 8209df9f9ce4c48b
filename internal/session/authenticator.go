package session

import (
	"context"
	"errors"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
)

var (
	// ErrMissingCredentials is a validation error: login needs both an
	// email and a password.
	ErrMissingCredentials = errors.New("email and password are required")
	// ErrMissingUser is returned when the remote side answered without a
	// user record.
	ErrMissingUser = errors.New("invalid server response: missing user")
	// ErrMissingToken is returned when the remote side answered without a
	// token.
	ErrMissingToken = errors.New("invalid server response: missing token")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Credentials are the login inputs.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up payload.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// AuthResult is what the remote auth service returns on success.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Authenticator is the remote auth collaborator.
type Authenticator interface {
	Login(ctx context.Context, c Credentials) (AuthResult, error)
	Register(ctx context.Context, r Registration) (AuthResult, error)
	// ValidateToken reports whether token is still accepted.
	ValidateToken(ctx context.Context, token string) (bool, error)
	// Logout notifies the remote side; failures are not fatal to callers.
	Logout(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, token, current, next string) error
}

// Message returns the human-readable reason carried by err, or fallback.
// Errors that implement UserMessage() (such as client.APIError) supply
// their own text; session sentinels use theirs.
func Message(err error, fallback string) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	for _, known := range []error{ErrMissingCredentials, ErrMissingUser, ErrMissingToken, ErrNotAuthenticated} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return fallback
}
