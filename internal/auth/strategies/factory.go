package strategies

import (
	"fmt"
	"strings"

	"github.com/brizzai/passport/internal/auth/constants"
	"github.com/brizzai/passport/internal/config"
)

// New builds the strategy for provider kind from configuration. Extra options
// are applied after the ones derived from cfg.
func New(cfg *config.StrategyConfig, opts ...Option) (Strategy, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}

	var derived []Option
	if cfg.PKCE != nil {
		derived = append(derived, WithPKCE(*cfg.PKCE))
	}
	opts = append(derived, opts...)

	kind := strings.ToLower(cfg.Provider)
	switch kind {
	case constants.ProviderMicrosoft:
		if cfg.Tenant != "" {
			opts = append([]Option{WithTenant(cfg.Tenant)}, opts...)
		}
		return build(NewMicrosoftStrategy(cfg.ClientID, cfg.ClientSecret, cfg.Scopes, cfg.RedirectURL, cfg.FailureRedirect, opts...))
	case constants.ProviderGoogle:
		if cfg.VerifyIDToken {
			opts = append([]Option{WithIDTokenVerification()}, opts...)
		}
		return build(NewGoogleStrategy(cfg.ClientID, cfg.ClientSecret, cfg.Scopes, cfg.RedirectURL, cfg.FailureRedirect, opts...))
	case constants.ProviderGitHub:
		return build(NewGitHubStrategy(cfg.ClientID, cfg.ClientSecret, cfg.Scopes, cfg.RedirectURL, cfg.FailureRedirect, opts...))
	case constants.ProviderFacebook:
		return build(NewFacebookStrategy(cfg.ClientID, cfg.ClientSecret, cfg.Scopes, cfg.RedirectURL, cfg.FailureRedirect, opts...))
	case constants.ProviderDiscord:
		return build(NewDiscordStrategy(cfg.ClientID, cfg.ClientSecret, cfg.Scopes, cfg.RedirectURL, cfg.FailureRedirect, opts...))
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownProvider, cfg.Provider, strings.Join(constants.SupportedProviders, ", "))
	}
}

// build keeps a failed constructor from returning a non-nil interface holding
// a nil pointer.
func build[S Strategy](s S, err error) (Strategy, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
