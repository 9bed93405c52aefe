package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrRevoked      = fmt.Errorf("%w: token revoked", ErrUnauthorized)
)

// Claims is the JWT payload of a session token.
type Claims struct {
	UserID   int64  `json:"uid"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for the identity and its expiry.
func (ti *TokenIssuer) Issue(id Identity) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	claims := Claims{
		UserID:   id.UserID,
		Email:    id.Email,
		Name:     id.Name,
		Provider: id.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies the signature and expiry and returns the claims.
func (ti *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ti.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidToken)
	}
	return claims, nil
}

// Identity converts verified claims into a request identity.
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:   c.UserID,
		Email:    c.Email,
		Name:     c.Name,
		Provider: c.Provider,
		TokenID:  c.ID,
	}
}
