package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, subject string, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestNew_UnknownMode(t *testing.T) {
	if _, err := New(Config{Mode: "oauth"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNew_TokenModeRequiresSecret(t *testing.T) {
	if _, err := New(Config{Mode: "token"}); err == nil {
		t.Error("expected error for missing secret")
	}
}

func TestNoneMode_AcceptsAnyone(t *testing.T) {
	a, err := New(Config{Mode: "none"})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	identity, err := a.Authenticate(context.Background(), ConnContext{RemoteAddr: "10.0.0.1"})
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if identity.Subject != "anonymous" {
		t.Errorf("unexpected subject: %s", identity.Subject)
	}
}

func TestTokenMode_ValidToken(t *testing.T) {
	a, err := New(Config{Mode: "token", Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	token := signToken(t, "test-secret", "user-42", time.Now().Add(time.Hour))
	identity, err := a.Authenticate(context.Background(), ConnContext{Token: token})
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if identity.Subject != "user-42" {
		t.Errorf("expected subject user-42, got %s", identity.Subject)
	}
}

func TestTokenMode_MissingToken(t *testing.T) {
	a, _ := New(Config{Mode: "token", Secret: "test-secret"})

	_, err := a.Authenticate(context.Background(), ConnContext{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTokenMode_WrongSecret(t *testing.T) {
	a, _ := New(Config{Mode: "token", Secret: "test-secret"})

	token := signToken(t, "other-secret", "user-42", time.Now().Add(time.Hour))
	_, err := a.Authenticate(context.Background(), ConnContext{Token: token})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTokenMode_ExpiredToken(t *testing.T) {
	a, _ := New(Config{Mode: "token", Secret: "test-secret"})

	token := signToken(t, "test-secret", "user-42", time.Now().Add(-time.Hour))
	_, err := a.Authenticate(context.Background(), ConnContext{Token: token})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTokenMode_NoSubject(t *testing.T) {
	a, _ := New(Config{Mode: "token", Secret: "test-secret"})

	token := signToken(t, "test-secret", "", time.Now().Add(time.Hour))
	_, err := a.Authenticate(context.Background(), ConnContext{Token: token})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
