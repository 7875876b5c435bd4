package security

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestGenerateSessionToken(t *testing.T) {
	token, hash, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if len(raw)*8 < 256 {
		t.Fatalf("token carries %d bits, want at least 256", len(raw)*8)
	}
	if !bytes.Equal(hash, HashSessionToken(token)) {
		t.Fatal("returned hash does not match HashSessionToken")
	}

	other, _, err := GenerateSessionToken()
	if err != nil {
		t.Fatal(err)
	}
	if other == token {
		t.Fatal("tokens must not repeat")
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	now := time.Now()
	signed, err := SignSessionCookie("secret", "tok-123", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := ParseSessionCookie(signed, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != "tok-123" {
		t.Fatalf("token = %q, want tok-123", got)
	}
}

func TestSessionCookieRejectsTamperingAndExpiry(t *testing.T) {
	now := time.Now()

	signed, err := SignSessionCookie("secret", "tok", now, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseSessionCookie(signed, "other-secret"); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("wrong secret: err = %v", err)
	}

	expired, err := SignSessionCookie("secret", "tok", now.Add(-2*time.Hour), now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseSessionCookie(expired, "secret"); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("expired cookie: err = %v", err)
	}
}
