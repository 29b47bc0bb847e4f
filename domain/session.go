package domain

import (
	"context"
	"errors"
	"time"
)

// Session maps an issued bearer token to the provider credential it
// unlocks. The token is the only way to reach the credential once a login
// completes; credentials themselves never leave the server.
type Session struct {
	Token      string    `json:"token" bson:"token"`
	Credential string    `json:"credential" bson:"credential"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// ErrSessionNotFound is returned by SessionStore.Get for unknown tokens.
// It is distinct from the provider rejecting a stored credential, which
// only surfaces when the credential is exercised.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the sole owner of issued sessions. Implementations must
// serialize mutations with respect to each other; Get may run concurrently
// against a consistent view.
type SessionStore interface {
	Put(ctx context.Context, token, credential string) error
	// Get returns the credential for token, or ErrSessionNotFound.
	Get(ctx context.Context, token string) (string, error)
	// Remove deletes the session. It is idempotent.
	Remove(ctx context.Context, token string) error
	Count(ctx context.Context) int
	Close(ctx context.Context) error
}
