// Package auth issues and verifies bearer tokens.
//
// A token is usable only while both checks pass: the HS256 signature (with
// expiry) and presence in the session store. Revocation removes the store
// entry, which kills a token that is otherwise still cryptographically valid.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"soldi/internal/core"
	"soldi/internal/session"
	"soldi/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionRevoked     = errors.New("session revoked")
)

// UserSource is the auth service's view of the user repository.
type UserSource interface {
	GetUserByUsername(ctx context.Context, username string) (*core.User, error)
}

type Service struct {
	users    UserSource
	sessions session.Store
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(users UserSource, sessions session.Store, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Login verifies the password, issues a signed token and records the session.
// When the session store is unreachable the login fails: a session that was
// never recorded could never be revoked.
func (s *Service) Login(ctx context.Context, username, password string) (string, *core.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	userID := strconv.FormatInt(user.ID, 10)
	claims := jwt.RegisteredClaims{
		Issuer:    "soldi",
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	if err := s.sessions.Save(ctx, token, userID, s.tokenTTL); err != nil {
		return "", nil, fmt.Errorf("record session: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID, "username", user.Username)
	return token, user, nil
}

// Verify checks the token signature and expiry, then requires the session to
// still exist in the store. Returns the user ID the token was issued for.
func (s *Service) Verify(ctx context.Context, token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer("soldi"),
	)
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	if !s.sessions.IsValid(ctx, token) {
		return 0, ErrSessionRevoked
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// Logout revokes the token's session. Logging out an already revoked or
// unknown token succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// LogoutAll revokes every session belonging to userID and returns how many
// were removed.
func (s *Service) LogoutAll(ctx context.Context, userID int64) (int, error) {
	revoked, err := s.sessions.RevokeAll(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	slog.InfoContext(ctx, "All sessions revoked", "user_id", userID, "sessions", revoked)
	return revoked, nil
}

// HashPassword produces a bcrypt hash suitable for the users table.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
