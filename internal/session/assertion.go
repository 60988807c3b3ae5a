package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidAssertion is returned when a sign-in assertion is missing,
// malformed, expired or signed with the wrong key.
var ErrInvalidAssertion = errors.New("invalid sign-in assertion")

// maxAssertionAge bounds how long after issue an assertion is accepted,
// independent of its own exp claim.
const maxAssertionAge = 5 * time.Minute

// AssertionVerifier checks the short-lived HS256 tokens the account backend
// issues after a user proves who they are. A session is only created for the
// token's subject.
type AssertionVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAssertionVerifier returns a verifier for tokens signed with secret by
// issuer. It returns nil when secret is empty, which disables sign-in.
func NewAssertionVerifier(secret, issuer string, now func() time.Time) *AssertionVerifier {
	if secret == "" {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &AssertionVerifier{secret: []byte(secret), issuer: issuer, now: now}
}

// Verify parses token and returns the user id it asserts.
func (v *AssertionVerifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidAssertion)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	if claims.IssuedAt == nil || v.now().Sub(claims.IssuedAt.Time) > maxAssertionAge {
		return "", fmt.Errorf("%w: issued too long ago", ErrInvalidAssertion)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidAssertion)
	}
	return subject, nil
}

// SignAssertion issues an assertion for userID valid for ttl. The account
// backend and the tests use it; the storefront itself only verifies.
func SignAssertion(secret, issuer, userID string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
