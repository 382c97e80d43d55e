// Package flow keeps the authorization attempts that are waiting for a
// provider callback, keyed by their state token.
package flow

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means no pending flow exists for the state.
	ErrNotFound = errors.New("pending flow not found")
	// ErrExpired means the flow existed but outlived its TTL.
	ErrExpired = errors.New("pending flow expired")
	// ErrStateExists means the state is already bound to a pending flow.
	ErrStateExists = errors.New("state already pending")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("flow store closed")
)

// Entry is a pending authorization attempt.
type Entry struct {
	Strategy  string
	Verifier  string // PKCE code verifier, empty when PKCE is off
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store holds pending flows. Take is single-use: a successful Take removes the
// entry so a replayed state is rejected.
type Store interface {
	Put(ctx context.Context, state string, entry Entry) error
	Take(ctx context.Context, state string) (Entry, error)
	Len() int
	Close() error
}
