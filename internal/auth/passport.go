// Package auth runs the two-phase OAuth 2.0 login flow over a set of named
// strategies: build a state-bound authorization URL, then validate the
// provider callback against the pending state before exchanging the code.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/brizzai/passport/internal/auth/constants"
	"github.com/brizzai/passport/internal/auth/flow"
	"github.com/brizzai/passport/internal/auth/strategies"
	"github.com/brizzai/passport/internal/logger"
	"go.uber.org/zap"
)

// Passport holds the registered strategies, the currently selected one, and
// the pending flows. It is safe for concurrent use; Authenticate followed by
// GenerateRedirectURL is two calls though, so concurrent callers sharing one
// Passport should use AuthorizeURL instead.
type Passport struct {
	mu         sync.Mutex
	strategies map[string]strategies.Strategy
	selected   string

	flows    flow.Store
	newState func() (string, error)
}

// Option configures a Passport.
type Option func(*Passport)

// WithFlowStore replaces the default in-memory flow store.
func WithFlowStore(store flow.Store) Option {
	return func(p *Passport) {
		if store != nil {
			p.flows = store
		}
	}
}

// WithStateGenerator replaces GenerateState.
func WithStateGenerator(fn func() (string, error)) Option {
	return func(p *Passport) {
		if fn != nil {
			p.newState = fn
		}
	}
}

// New creates an empty Passport.
func New(opts ...Option) *Passport {
	p := &Passport{
		strategies: make(map[string]strategies.Strategy),
		newState:   GenerateState,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.flows == nil {
		p.flows = flow.NewMemoryStore()
	}
	return p
}

// Using registers s under name, replacing any strategy already there.
func (p *Passport) Using(name string, s strategies.Strategy) *Passport {
	if s == nil {
		logger.Warn("Ignoring nil strategy", zap.String("strategy", name))
		return p
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.strategies[name]; ok {
		logger.Info("Replacing strategy", zap.String("strategy", name), zap.String("provider", s.Name()))
	}
	p.strategies[name] = s
	return p
}

// Authenticate selects the strategy used by GenerateRedirectURL.
func (p *Passport) Authenticate(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.strategies[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	p.selected = name
	return nil
}

// GenerateRedirectURL returns the provider authorization URL for the selected
// strategy and records the pending flow under a fresh state.
func (p *Passport) GenerateRedirectURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.selected == "" {
		return "", ErrNoStrategySelected
	}
	return p.redirectURL(ctx, p.selected)
}

// AuthorizeURL selects name and generates its redirect URL under one lock.
func (p *Passport) AuthorizeURL(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.strategies[name]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	p.selected = name
	return p.redirectURL(ctx, name)
}

// redirectURL must be called with p.mu held.
func (p *Passport) redirectURL(ctx context.Context, name string) (string, error) {
	s, ok := p.strategies[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}

	for attempt := 0; attempt < constants.StateAttempts; attempt++ {
		state, err := p.newState()
		if err != nil {
			return "", err
		}

		authURL, verifier := s.AuthorizeURL(state)
		err = p.flows.Put(ctx, state, flow.Entry{Strategy: name, Verifier: verifier})
		if errors.Is(err, flow.ErrStateExists) {
			logger.Warn("Generated state already pending, retrying", zap.String("strategy", name))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to store pending flow: %w", err)
		}

		logger.Info("Generated authorization URL",
			zap.String("strategy", name),
			zap.String("provider", s.Name()),
			zap.Bool("pkce", verifier != ""),
		)
		return authURL, nil
	}
	return "", fmt.Errorf("failed to generate a unique state after %d attempts", constants.StateAttempts)
}

// GetProfile completes a flow from the provider callback. The pending entry
// for sc.State is consumed before anything else happens, so a state can be
// used at most once. A denial at the provider yields FailureRedirect.
func (p *Passport) GetProfile(ctx context.Context, sc StateCode) (Response, error) {
	if sc.State == "" {
		return nil, fmt.Errorf("%w: state missing from callback", ErrUnknownState)
	}

	entry, err := p.flows.Take(ctx, sc.State)
	if err != nil {
		if errors.Is(err, flow.ErrNotFound) || errors.Is(err, flow.ErrExpired) {
			logger.Warn("Rejected callback with unknown state", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrUnknownState, err)
		}
		return nil, err
	}

	p.mu.Lock()
	s, ok := p.strategies[entry.Strategy]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, entry.Strategy)
	}

	if sc.Error != "" {
		logger.Info("Authorization denied at provider",
			zap.String("strategy", entry.Strategy),
			zap.String("error", sc.Error),
			zap.String("error_description", sc.ErrorDescription),
		)
		if target := s.FailureRedirect(); target != "" {
			return FailureRedirect{URL: target}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, sc.Error)
	}
	if sc.Code == "" {
		return nil, ErrMissingCode
	}

	token, err := s.ExchangeCode(ctx, sc.Code, entry.Verifier)
	if err != nil {
		logger.Error("Failed to exchange code", zap.String("strategy", entry.Strategy), zap.Error(err))
		return nil, &ExchangeError{Strategy: entry.Strategy, Err: err}
	}

	profile, err := s.FetchProfile(ctx, token)
	if err != nil {
		logger.Error("Failed to fetch profile", zap.String("strategy", entry.Strategy), zap.Error(err))
		return nil, &ProfileError{Strategy: entry.Strategy, Err: err}
	}

	logger.Info("Login completed",
		zap.String("strategy", entry.Strategy),
		zap.String("user_id", profile.User.ID),
	)
	return ProfileResponse{Profile: profile}, nil
}

// Strategy returns the strategy registered under name.
func (p *Passport) Strategy(name string) (strategies.Strategy, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.strategies[name]
	return s, ok
}

// Names returns the registered strategy names in sorted order.
func (p *Passport) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.strategies))
	for name := range p.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Selected returns the strategy picked by the last Authenticate.
func (p *Passport) Selected() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Pending returns the number of flows awaiting a callback.
func (p *Passport) Pending() int {
	return p.flows.Len()
}

// Close releases the flow store.
func (p *Passport) Close() error {
	return p.flows.Close()
}
