// Package auth holds the stateless credential primitives: signed bearer tokens,
// password hashing and single-use reset secrets.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers malformed tokens and bad signatures.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned once a token is past its validity window.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is what a verified bearer token resolves to.
type Claims struct {
	Subject  string
	IssuedAt time.Time
}

// tokenClaims carries the issue instant at nanosecond precision next to the
// registered claims, since iat only resolves whole seconds.
type tokenClaims struct {
	jwt.RegisteredClaims
	IssuedAtNanos int64 `json:"iat_ns,omitempty"`
}

// TokenIssuer mints and verifies HS256 bearer tokens with a server held secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer signing with secret; tokens stay valid for ttl.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source; used by tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *i
	cp.now = now
	return &cp
}

// TTL is the fixed validity window of issued tokens.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for subjectID stamped with the current time.
func (i *TokenIssuer) Issue(subjectID string) (string, error) {
	if subjectID == "" {
		return "", errors.New("token subject is required")
	}
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		IssuedAtNanos: now.UnixNano(),
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and validity window and returns the embedded claims.
func (i *TokenIssuer) Verify(raw string) (Claims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return Claims{}, ErrInvalidToken
	}

	issuedAt := claims.IssuedAt.Time
	if claims.IssuedAtNanos != 0 {
		precise := time.Unix(0, claims.IssuedAtNanos)
		// the precise stamp must agree with the signed iat second
		if precise.Unix() != issuedAt.Unix() {
			return Claims{}, ErrInvalidToken
		}
		issuedAt = precise
	}
	return Claims{Subject: claims.Subject, IssuedAt: issuedAt}, nil
}
