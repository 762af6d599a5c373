package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func TestIdentify_ValidToken(t *testing.T) {
	token, err := Sign(testSecret, "convocatorias", "user-42", time.Hour)
	require.NoError(t, err)

	v := NewVerifier(Config{Secret: testSecret, Issuer: "convocatorias"})
	id, err := v.Identify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user-42"}, id)

	id, err = v.Identify("bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id.UserID)
}

func TestIdentify_Rejections(t *testing.T) {
	valid, err := Sign(testSecret, "", "user-1", time.Hour)
	require.NoError(t, err)
	expired, err := Sign(testSecret, "", "user-1", -time.Minute)
	require.NoError(t, err)
	otherKey, err := Sign("another-secret", "", "user-1", time.Hour)
	require.NoError(t, err)
	noSubject, err := Sign(testSecret, "", "", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := Sign(testSecret, "someone-else", "user-1", time.Hour)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		issuer string
	}{
		{"basic scheme", "Basic " + valid, ""},
		{"bearer without token", "Bearer ", ""},
		{"garbage", "Bearer not.a.jwt", ""},
		{"expired", "Bearer " + expired, ""},
		{"wrong key", "Bearer " + otherKey, ""},
		{"no subject", "Bearer " + noSubject, ""},
		{"wrong issuer", "Bearer " + wrongIssuer, "convocatorias"},
		{"no expiry", "Bearer " + noExp, ""},
		{"other algorithm", "Bearer " + hs512, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(Config{Secret: testSecret, Issuer: tt.issuer, AllowAnonymous: true})
			_, err := v.Identify(tt.header)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}

func TestIdentify_Anonymous(t *testing.T) {
	_, err := NewVerifier(Config{Secret: testSecret}).Identify("")
	assert.True(t, errors.Is(err, ErrMissingToken))

	id, err := NewVerifier(Config{AllowAnonymous: true}).Identify("")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "anonymous", Anonymous: true}, id)

	id, err = NewVerifier(Config{AllowAnonymous: true, AnonymousID: "guest"}).Identify("  ")
	require.NoError(t, err)
	assert.Equal(t, "guest", id.UserID)
}

func TestIdentify_NoSecretRejectsTokens(t *testing.T) {
	token, err := Sign(testSecret, "", "user-1", time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier(Config{AllowAnonymous: true}).Identify("Bearer " + token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
