// Package nonce issues and verifies the anti-forgery tokens guarding license
// changes. A token is bound to an action and a user and expires after a day.
package nonce

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sellcomet/eddlicense/internal/host"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired nonce")
	ErrTokenExpired   = errors.New("nonce has expired")
	ErrActionMismatch = errors.New("nonce was issued for another action")
	ErrUserMismatch   = errors.New("nonce was issued for another user")
)

// DefaultLifetime is how long an issued nonce stays valid.
const DefaultLifetime = 24 * time.Hour

const issuer = "eddlicense"

// Claims are the signed contents of a nonce.
type Claims struct {
	jwt.RegisteredClaims
	Action string `json:"act"`
}

// Manager signs nonces with an HMAC secret.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

var (
	_ host.TokenIssuer   = (*Manager)(nil)
	_ host.TokenVerifier = (*Manager)(nil)
)

// Option configures a Manager.
type Option func(*Manager)

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lifetime = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New returns a Manager signing with secret. An empty secret is replaced by
// random bytes, so nonces do not survive a restart.
func New(secret string, opts ...Option) (*Manager, error) {
	m := &Manager{
		secret:   []byte(secret),
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	if len(m.secret) == 0 {
		m.secret = make([]byte, 32)
		if _, err := rand.Read(m.secret); err != nil {
			return nil, fmt.Errorf("failed to generate nonce secret: %w", err)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue returns a nonce for action and user.
func (m *Manager) Issue(action, user string) (string, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
		Action: action,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign nonce: %w", err)
	}
	return signed, nil
}

// Validate parses token and checks it was issued for action and user.
func (m *Manager) Validate(token, action, user string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Action != action {
		return nil, ErrActionMismatch
	}
	if claims.Subject != user {
		return nil, ErrUserMismatch
	}
	return claims, nil
}

// Verify implements host.TokenVerifier.
func (m *Manager) Verify(token, action, user string) bool {
	_, err := m.Validate(token, action, user)
	return err == nil
}
