// Package auth verifies bearer tokens and carries the caller's identity.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

var (
	// ErrMissingToken is returned when no bearer token is sent and anonymous
	// access is not allowed.
	ErrMissingToken = eris.New("auth: missing bearer token")
	// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
	ErrInvalidToken = eris.New("auth: invalid token")
)

// Identity is the caller of a request.
type Identity struct {
	UserID    string `json:"user_id"`
	Anonymous bool   `json:"anonymous"`
}

// Config configures a Verifier.
type Config struct {
	Secret         string
	Issuer         string
	AllowAnonymous bool
	AnonymousID    string
}

// Verifier checks HS256 bearer tokens. The token subject is the user id.
type Verifier struct {
	secret         []byte
	issuer         string
	allowAnonymous bool
	anonymousID    string
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg Config) *Verifier {
	anon := cfg.AnonymousID
	if anon == "" {
		anon = "anonymous"
	}
	return &Verifier{
		secret:         []byte(cfg.Secret),
		issuer:         cfg.Issuer,
		allowAnonymous: cfg.AllowAnonymous,
		anonymousID:    anon,
	}
}

// Identify resolves the Authorization header value to an Identity. An absent
// header yields the anonymous identity only when allowed; a present but
// invalid token is always rejected.
func (v *Verifier) Identify(header string) (Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		if v.allowAnonymous {
			return Identity{UserID: v.anonymousID, Anonymous: true}, nil
		}
		return Identity{}, ErrMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Identity{}, eris.Wrap(ErrInvalidToken, "auth: expected bearer scheme")
	}
	if len(v.secret) == 0 {
		return Identity{}, eris.Wrap(ErrInvalidToken, "auth: no signing secret configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Identity{}, eris.Wrapf(ErrInvalidToken, "auth: %v", err)
	}
	if claims.Subject == "" {
		return Identity{}, eris.Wrap(ErrInvalidToken, "auth: token has no subject")
	}
	return Identity{UserID: claims.Subject}, nil
}

// Sign issues an HS256 token for userID that expires after ttl.
func Sign(secret, issuer, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", eris.Wrap(err, "auth: sign token")
	}
	return s, nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
