package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
)

// Simulator is the local-simulation auth service used when no API is
// configured. Every well-formed login succeeds, the id is derived from
// the email, and any non-empty token validates.
type Simulator struct {
	Now func() time.Time
}

func (s Simulator) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Simulator) token() string {
	return fmt.Sprintf("sim-token-%d-%s", s.now().UnixMilli(), uuid.NewString()[:8])
}

func (s Simulator) Login(_ context.Context, c Credentials) (AuthResult, error) {
	if c.Email == "" || c.Password == "" {
		return AuthResult{}, ErrMissingCredentials
	}
	local := c.Email
	if i := strings.IndexByte(local, '@'); i >= 0 {
		local = local[:i]
	}
	return AuthResult{
		User:  &model.User{ID: DeriveID(c.Email), Email: c.Email, Name: "User " + local},
		Token: s.token(),
	}, nil
}

func (s Simulator) Register(_ context.Context, r Registration) (AuthResult, error) {
	if r.Email == "" || r.Password == "" {
		return AuthResult{}, ErrMissingCredentials
	}
	name := r.Name
	if name == "" {
		name = "New user"
	}
	return AuthResult{
		User:  &model.User{ID: DeriveID(r.Email), Email: r.Email, Name: name, Avatar: r.Avatar},
		Token: s.token(),
	}, nil
}

func (Simulator) ValidateToken(_ context.Context, token string) (bool, error) {
	return token != "", nil
}

func (Simulator) Logout(context.Context, string) error { return nil }

func (Simulator) ChangePassword(_ context.Context, _, current, next string) error {
	if current == "" || next == "" {
		return ErrMissingCredentials
	}
	return nil
}
