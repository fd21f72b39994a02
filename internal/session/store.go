// Package session tracks which bearer tokens are currently logged in.
//
// The store is a second revocation layer on top of signed tokens: a token
// that is cryptographically valid but absent from the store is not usable.
// Entries expire with the token's TTL, so "valid" and "exists" are the same
// question.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is returned by Save when the backing store cannot be
// reached. Callers must treat this as a login failure: a session that was
// never recorded cannot be revoked later.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Store maps bearer tokens to user identities for the lifetime of a session.
//
// Reads fail to deny: IsValid and GetUserID report a missing entry both when
// the token is genuinely absent and when the store is unreachable. Outages
// surface to users as "please log in again" until the store recovers.
type Store interface {
	// Save records token -> userID with the given TTL, overwriting any
	// existing entry for the same token.
	Save(ctx context.Context, token, userID string, ttl time.Duration) error

	// IsValid reports whether the token currently exists in the store.
	IsValid(ctx context.Context, token string) bool

	// GetUserID returns the user identity for the token, or ("", false)
	// if the token is absent.
	GetUserID(ctx context.Context, token string) (string, bool)

	// Revoke deletes the token. Revoking an absent token is not an error.
	Revoke(ctx context.Context, token string) error

	// RevokeAll deletes every token belonging to userID and returns how
	// many were removed. This scans the full token namespace; acceptable
	// while active-session counts stay small.
	RevokeAll(ctx context.Context, userID string) (int, error)

	// CountActive returns the number of live sessions across all users.
	CountActive(ctx context.Context) (int, error)
}
