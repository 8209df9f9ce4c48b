package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/storage"
)

// ProfileStore persists the authenticated user's profile.
type ProfileStore struct {
	store storage.Store
	now   func() time.Time
	log   *log.Logger
}

func NewProfileStore(s storage.Store, now func() time.Time, logger *log.Logger) *ProfileStore {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.New("session")
	}
	return &ProfileStore{store: s, now: now, log: logger}
}

// DeriveID is the fallback user identifier used when the server does not
// assign one: the lower-cased part of the email before '@'. It is stable
// for a given email, so bookings keyed by it survive logout and login.
// Two emails sharing a local part map to the same id.
func DeriveID(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if i := strings.IndexByte(email, '@'); i >= 0 {
		email = email[:i]
	}
	return email
}

// normalize keeps only the profile fields and fills a missing id.
func (p *ProfileStore) normalize(u model.User) model.User {
	if u.ID == "" {
		u.ID = DeriveID(u.Email)
	}
	if u.ID == "" {
		u.ID = fmt.Sprintf("user_%d", p.now().UnixMilli())
	}
	return model.User{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

// Entry returns the write that stores u along with the normalized user.
func (p *ProfileStore) Entry(u model.User) (storage.Entry, model.User, error) {
	u = p.normalize(u)
	e, err := storage.PutJSON(ProfileKey, u)
	return e, u, err
}

// SetUser stores u and returns the stored form.
func (p *ProfileStore) SetUser(ctx context.Context, u model.User) (model.User, error) {
	e, u, err := p.Entry(u)
	if err != nil {
		return model.User{}, err
	}
	if err := p.store.Set(ctx, e.Key, e.Value); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetUser returns the stored profile. Missing or unreadable data reports
// false.
func (p *ProfileStore) GetUser(ctx context.Context) (model.User, bool) {
	var u model.User
	err := storage.GetJSON(ctx, p.store, ProfileKey, &u)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return model.User{}, false
	case err != nil:
		p.log.Warnf("profile unreadable: %v", err)
		return model.User{}, false
	}
	return u, true
}
