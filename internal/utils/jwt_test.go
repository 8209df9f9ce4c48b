package utils

import (
	"testing"
	"time"

	"github.com/labstack/gommon/log"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "a@x.com", time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	c, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if c.UserID != 42 || c.Email != "a@x.com" {
		t.Fatalf("unexpected claims %+v", c)
	}
	if c.Exp.Unix() != tok.Exp.Unix() {
		t.Fatalf("exp mismatch: %v vs %v", c.Exp, tok.Exp)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "a@x.com", time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if _, err := ParseAccessToken("other", tok.Token); err != ErrInvalidToken {
		t.Fatalf("wrong secret error = %v", err)
	}
	expired, err := NewAccessToken("s3cret", 1, "a@x.com", -time.Minute)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if _, err := ParseAccessToken("s3cret", expired.Token); err != ErrInvalidToken {
		t.Fatalf("expired token error = %v", err)
	}
	if _, err := ParseAccessToken("s3cret", "not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("garbage token error = %v", err)
	}
}

func TestTokensAreDistinct(t *testing.T) {
	a, _ := NewAccessToken("s", 1, "a@x.com", time.Hour)
	b, _ := NewAccessToken("s", 1, "a@x.com", time.Hour)
	if a.Token == b.Token {
		t.Fatalf("two tokens issued back to back are identical")
	}
	if HashToken(a.Token) == HashToken(b.Token) || len(HashToken(a.Token)) != 64 {
		t.Fatalf("unexpected hashes")
	}
}

func TestPasswordHashing(t *testing.T) {
	h, err := HashPassword("hunter22", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(h, "hunter22") || VerifyPassword(h, "wrong") {
		t.Fatalf("VerifyPassword mismatch")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]log.Lvl{"debug": log.DEBUG, "WARN": log.WARN, "error": log.ERROR, "off": log.OFF, "": log.INFO, "bogus": log.INFO}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}
