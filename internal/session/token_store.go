package session

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/storage"
)

// Storage keys of the session state.
const (
	TokenKey   = "user_token"
	ProfileKey = "user_data"
)

// DefaultTokenTTL is how long a stored token stays valid locally.
const DefaultTokenTTL = 24 * time.Hour

// TokenStore persists the session token with an absolute expiry. Expiry
// is checked lazily on every read; there is no background timer.
type TokenStore struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
	log   *log.Logger
}

func NewTokenStore(s storage.Store, ttl time.Duration, now func() time.Time, logger *log.Logger) *TokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.New("session")
	}
	return &TokenStore{store: s, ttl: ttl, now: now, log: logger}
}

// Entry returns the write that stores token with a fresh expiry.
func (t *TokenStore) Entry(token string) (storage.Entry, error) {
	return storage.PutJSON(TokenKey, model.Token{
		Value:   token,
		Expires: t.now().Add(t.ttl).UnixMilli(),
	})
}

// SetToken stores token. An empty token is ignored.
func (t *TokenStore) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	e, err := t.Entry(token)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, e.Key, e.Value)
}

// GetToken returns the stored token. It reports false when nothing is
// stored, when the payload does not parse, or when the token expired; in
// the expired case the token and the profile are cleared as well.
func (t *TokenStore) GetToken(ctx context.Context) (string, bool) {
	var tok model.Token
	err := storage.GetJSON(ctx, t.store, TokenKey, &tok)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "", false
	case err != nil:
		t.log.Warnf("token unreadable: %v", err)
		return "", false
	}
	if tok.Expired(t.now()) {
		t.log.Infof("token expired at %s, clearing session", tok.ExpiresAt().UTC().Format(time.RFC3339))
		if err := t.Clear(ctx); err != nil {
			t.log.Errorf("clear expired session: %v", err)
		}
		return "", false
	}
	if tok.Value == "" {
		return "", false
	}
	return tok.Value, true
}

// Clear removes the token and the profile together.
func (t *TokenStore) Clear(ctx context.Context) error {
	return t.store.Apply(ctx, storage.Del(TokenKey), storage.Del(ProfileKey))
}
