// Package auth validates callers before any session identity exists.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for any failed authentication
var ErrUnauthorized = errors.New("unauthorized")

// ConnContext carries what is known about a caller before it has a session
type ConnContext struct {
	RemoteAddr string
	Origin     string
	Token      string
}

// Identity is the authenticated caller
type Identity struct {
	Subject string
}

// Authenticator is consulted once per inbound connection, before any
// session exists. A rejection aborts the connection with no session created.
type Authenticator interface {
	Authenticate(ctx context.Context, conn ConnContext) (*Identity, error)
}

// Config selects the authentication mode
type Config struct {
	Mode   string // "none" or "token"
	Secret string // HS256 signing secret for token mode
}

// New creates the authenticator for the configured mode
func New(cfg Config) (Authenticator, error) {
	switch cfg.Mode {
	case "", "none":
		return noneAuthenticator{}, nil
	case "token":
		if cfg.Secret == "" {
			return nil, fmt.Errorf("token auth requires a signing secret")
		}
		return &tokenAuthenticator{secret: []byte(cfg.Secret)}, nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
}

// noneAuthenticator accepts everyone; for development and trusted networks
type noneAuthenticator struct{}

func (noneAuthenticator) Authenticate(ctx context.Context, conn ConnContext) (*Identity, error) {
	return &Identity{Subject: "anonymous"}, nil
}

// tokenAuthenticator validates HS256 bearer tokens
type tokenAuthenticator struct {
	secret []byte
}

func (a *tokenAuthenticator) Authenticate(ctx context.Context, conn ConnContext) (*Identity, error) {
	if conn.Token == "" {
		return nil, fmt.Errorf("missing token: %w", ErrUnauthorized)
	}

	token, err := jwt.ParseWithClaims(conn.Token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", errors.Join(err, ErrUnauthorized))
	}
	if !token.Valid {
		return nil, ErrUnauthorized
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", ErrUnauthorized)
	}
	return &Identity{Subject: claims.Subject}, nil
}
