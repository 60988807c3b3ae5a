package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "assertion-secret-0123456789abcdef"
	testIssuer = "naaz-backend"
)

func TestAssertionVerifier(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := NewAssertionVerifier(testSecret, testIssuer, func() time.Time { return now })
	require.NotNil(t, v)

	sign := func(secret, issuer, sub string, iat time.Time, ttl time.Duration) string {
		token, err := SignAssertion(secret, issuer, sub, iat, ttl)
		require.NoError(t, err)
		return token
	}

	userID, err := v.Verify(sign(testSecret, testIssuer, "alice", now, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", "  "},
		{"garbage", "not-a-jwt"},
		{"wrong key", sign("another-secret-0123456789abcdefgh", testIssuer, "alice", now, time.Minute)},
		{"wrong issuer", sign(testSecret, "someone-else", "alice", now, time.Minute)},
		{"expired", sign(testSecret, testIssuer, "alice", now.Add(-2*time.Minute), time.Minute)},
		{"issued too long ago", sign(testSecret, testIssuer, "alice", now.Add(-10*time.Minute), time.Hour)},
		{"issued in the future", sign(testSecret, testIssuer, "alice", now.Add(time.Hour), time.Hour)},
		{"no subject", sign(testSecret, testIssuer, " ", now, time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidAssertion)
		})
	}
}

func TestAssertionVerifier_RejectsOtherAlgorithms(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := NewAssertionVerifier(testSecret, testIssuer, func() time.Time { return now })

	claims := jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Subject:   "alice",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidAssertion)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = v.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalidAssertion)
}

func TestNewAssertionVerifier_DisabledWithoutSecret(t *testing.T) {
	assert.Nil(t, NewAssertionVerifier("", testIssuer, nil))
}
