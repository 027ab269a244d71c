// Package utils provides helpers for credentials, tokens and slugs.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the triple a session credential proves.  TenantID is the
// tenant context of every request made with the credential.
type SessionClaims struct {
	UserID   string
	TenantID string
	Role     string
}

// SessionToken is a signed session credential with its expiry.
type SessionToken struct {
	Token string
	Exp   time.Time
}

// ErrInvalidSession is returned for tokens that fail signature, algorithm,
// expiry or shape checks.
var ErrInvalidSession = errors.New("invalid session token")

type sessionJWT struct {
	TenantID string `json:"tid,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewSessionToken signs an HS256 JWT carrying the claims: sub is the user
// id, tid the tenant id and role the role at the time of issue.
func NewSessionToken(secret string, c SessionClaims, ttl time.Duration) (SessionToken, error) {
	if secret == "" {
		return SessionToken{}, errors.New("session secret is empty")
	}
	if c.UserID == "" {
		return SessionToken{}, errors.New("session requires a user id")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := sessionJWT{
		TenantID: c.TenantID,
		Role:     c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies raw and returns its claims.
func ParseSessionToken(secret, raw string) (SessionClaims, error) {
	var claims sessionJWT
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid || claims.Subject == "" {
		return SessionClaims{}, ErrInvalidSession
	}
	return SessionClaims{UserID: claims.Subject, TenantID: claims.TenantID, Role: claims.Role}, nil
}
