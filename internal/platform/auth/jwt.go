package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired signals that the session token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals a malformed, tampered or otherwise unusable token.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

const minSecretLength = 32

// Claims is the signed session payload.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// TokenOption customises the TokenManager.
type TokenOption func(*TokenManager)

// WithTokenClock injects a custom clock, primarily for tests.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewTokenManager constructs a TokenManager. The secret must be at least 32 bytes.
func NewTokenManager(secret, issuer string, opts ...TokenOption) (*TokenManager, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: jwt secret must be at least %d bytes", minSecretLength)
	}
	manager := &TokenManager{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager, nil
}

// Issue signs a token for the identity valid for ttl.
func (m *TokenManager) Issue(identity Identity, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(identity.ID) == "" || strings.TrimSpace(identity.Role) == "" {
		return "", time.Time{}, errors.New("auth: identity id and role are required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("auth: token ttl must be positive")
	}
	now := m.now().UTC()
	expires := now.Add(ttl)
	claims := Claims{
		ID:    identity.ID,
		Email: identity.Email,
		Role:  canonicalRole(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify validates the signature, algorithm, issuer and expiry of a token.
func (m *TokenManager) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	now := m.now()
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("%w: token not yet valid", ErrTokenInvalid)
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}
	if claims.ID == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing identity claims", ErrTokenInvalid)
	}
	return &Identity{ID: claims.ID, Email: claims.Email, Role: claims.Role}, nil
}
