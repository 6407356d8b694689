// Package auth issues and verifies session tokens and hashes passwords.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE — what is a JWT?
// ────────────────────────────────────────────────────────────────────
// A JSON Web Token has three Base64-encoded sections separated by dots:
//
//	HEADER.PAYLOAD.SIGNATURE
//
// The PAYLOAD carries our claims (user_id, role) plus the standard expiry
// and issued-at. The SIGNATURE is an HMAC-SHA256 of HEADER+PAYLOAD keyed
// by a secret only the server knows, so the server can trust the claims
// without a database lookup on every request.
//
// Useful resource: https://jwt.io/introduction
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims embedded in each token.
type Claims struct {
	UserID string          `json:"user_id"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Principal returns the caller the token identifies.
func (c *Claims) Principal() policy.Principal {
	return policy.Principal{UserID: c.UserID, Role: c.Role}
}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies tokens with one secret and lifetime.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewIssuer returns an Issuer whose tokens expire after ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, Now: time.Now}
}

// TTL is how long issued tokens stay valid.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Generate creates a signed token for the user.
func (i *Issuer) Generate(userID string, role models.UserRole) (string, error) {
	now := i.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns its claims. It rejects a bad
// signature, an expired token and any algorithm other than HMAC.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		// Guard against "alg:none" or RS256 tokens being passed to an HS256 server.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.Now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify adapts Parse to the shape the WebSocket hub expects.
func (i *Issuer) Verify(tokenStr string) (policy.Principal, error) {
	c, err := i.Parse(tokenStr)
	if err != nil {
		return policy.Principal{}, err
	}
	return c.Principal(), nil
}
