package domain

import (
	"context"
	"errors"
	"time"
)

// Challenge is a pending one-time-code login attempt tied to a phone
// number. It owns the provider connection the code was requested on;
// whoever removes the challenge from the registry is responsible for
// closing that connection.
type Challenge struct {
	Phone     string
	Handle    string
	Conn      ProviderConn
	CreatedAt time.Time
}

// ErrChallengeNotFound is returned by Take when no challenge is pending
// for the phone number. Callers surface it as "login session not found".
var ErrChallengeNotFound = errors.New("login session not found")

// ChallengeRegistry holds at most one pending challenge per phone number.
// Put and Take must be atomic with respect to each other for the same key.
type ChallengeRegistry interface {
	// Put stores ch, replacing any pending challenge for the same phone.
	// The superseded challenge, if any, is returned to the caller.
	Put(ctx context.Context, ch *Challenge) *Challenge
	// Take removes and returns the pending challenge for phone. A
	// challenge can be taken exactly once; further calls return
	// ErrChallengeNotFound.
	Take(ctx context.Context, phone string) (*Challenge, error)
	Len() int
	Close() error
}
