package auth

import (
	"context"
	"fmt"

	"github.com/brizzai/passport/internal/auth/flow"
	"github.com/brizzai/passport/internal/auth/strategies"
	"github.com/brizzai/passport/internal/config"
	"go.uber.org/fx"
)

// Module provides a *Passport built from *config.Config
var Module = fx.Module("auth",
	fx.Provide(
		NewFromConfig,
	),
	fx.Invoke(func(lc fx.Lifecycle, p *Passport) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return p.Close()
			},
		})
	}),
)

// NewFromConfig builds a Passport with every strategy in cfg.Strategies.
func NewFromConfig(cfg *config.Config) (*Passport, error) {
	store := flow.NewMemoryStore(
		flow.WithTTL(cfg.Flow.TTL),
		flow.WithCleanupInterval(cfg.Flow.CleanupInterval),
		flow.WithMaxEntries(cfg.Flow.MaxPending),
	)
	p := New(WithFlowStore(store))

	for name, sc := range cfg.Strategies {
		s, err := strategies.New(&sc)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to initialize strategy %s: %w", name, err)
		}
		p.Using(name, s)
	}
	return p, nil
}
