package auth

import (
	"errors"
	"fmt"

	"github.com/brizzai/passport/internal/auth/strategies"
)

var (
	// ErrInvalidStrategyConfig is returned when a strategy cannot be built.
	ErrInvalidStrategyConfig = strategies.ErrInvalidConfig
	// ErrUnknownStrategy means no strategy is registered under the name.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrNoStrategySelected means GenerateRedirectURL ran before Authenticate.
	ErrNoStrategySelected = errors.New("no strategy selected")
	// ErrUnknownState means the callback state was never issued, was already
	// used, or expired. The callback must be rejected.
	ErrUnknownState = errors.New("unknown or expired state")
	// ErrAccessDenied means the user refused consent and the strategy has no
	// failure redirect to send them to.
	ErrAccessDenied = errors.New("access denied by user")
	// ErrMissingCode means the callback carried neither a code nor an error.
	ErrMissingCode = errors.New("authorization code missing from callback")
)

// ExchangeError wraps a failed code-for-token exchange.
type ExchangeError struct {
	Strategy string
	Err      error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: token exchange failed: %v", e.Strategy, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// ProfileError wraps a failed profile fetch.
type ProfileError struct {
	Strategy string
	Err      error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("%s: profile fetch failed: %v", e.Strategy, e.Err)
}

func (e *ProfileError) Unwrap() error {
	return e.Err
}
