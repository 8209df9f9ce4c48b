package model

import "time"

// Token is the persisted form of a session token. Expires is an absolute
// instant in Unix milliseconds; a token read after that instant is treated
// as absent.
type Token struct {
	Value   string `json:"value"`
	Expires int64  `json:"expires"`
}

// ExpiresAt returns the expiry instant as a time.Time.
func (t Token) ExpiresAt() time.Time { return time.UnixMilli(t.Expires) }

// Expired reports whether the token is past its expiry at now.
func (t Token) Expired(now time.Time) bool { return now.UnixMilli() > t.Expires }
