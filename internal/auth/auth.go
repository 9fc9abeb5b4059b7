package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"slope-monitor-backend/internal/store"
)

var (
	// ErrAuth is the root of every authentication failure.
	ErrAuth = errors.New("auth")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrAuth)
	// ErrAccessDenied is returned when valid credentials lack the admin claim.
	ErrAccessDenied = fmt.Errorf("%w: access denied, admin privileges required", ErrAuth)
	// ErrInvalidToken is returned for malformed, expired or revoked session tokens.
	ErrInvalidToken = fmt.Errorf("%w: invalid or expired session", ErrAuth)
)

const issuer = "slope-monitor"

// Claims represents JWT claims
type Claims struct {
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Manager exchanges credentials for signed session tokens and verifies them.
type Manager struct {
	store   store.Store
	secret  []byte
	ttl     time.Duration
	revoked *cache.Cache
	now     func() time.Time
}

// NewManager creates a new authentication manager
func NewManager(s store.Store, secret string, ttl time.Duration) *Manager {
	return &Manager{
		store:   s,
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: cache.New(ttl, 10*time.Minute),
		now:     time.Now,
	}
}

// SignIn checks the password and issues a session token. The token is issued
// whatever the admin flag; callers decide what a non-admin session may do.
func (m *Manager) SignIn(ctx context.Context, email, password string) (string, *Claims, error) {
	user, err := m.store.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("sign in %q: %w", email, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := m.now()
	claims := &Claims{
		Email: user.Email,
		Admin: user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", user.ID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, claims, nil
}

// Verify validates the token signature, expiry and revocation.
func (m *Manager) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, revoked := m.revoked.Get(claims.ID); revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignOut revokes the token until it would have expired anyway.
// Invalid tokens are ignored.
func (m *Manager) SignOut(token string) {
	claims, err := m.Verify(token)
	if err != nil {
		return
	}
	remaining := claims.ExpiresAt.Time.Sub(m.now())
	if remaining <= 0 {
		return
	}
	m.revoked.Set(claims.ID, struct{}{}, remaining)
}

// HashPassword creates a bcrypt hash from a password
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
