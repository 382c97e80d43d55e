package strategies

import (
	"context"
	"strings"

	"github.com/brizzai/passport/internal/auth/constants"
	"github.com/brizzai/passport/internal/auth/models"
	"github.com/brizzai/passport/internal/logger"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var githubDef = providerDef{
	name:          constants.ProviderGitHub,
	endpoint:      github.Endpoint,
	profileURL:    "https://api.github.com/user",
	defaultScopes: []string{"read:user", "user:email"},
	mapUser: func(r gjson.Result) models.UserInfo {
		return models.UserInfo{
			ID:       firstString(r, "id"),
			Email:    firstString(r, "email"),
			Name:     firstString(r, "name", "login"),
			Picture:  firstString(r, "avatar_url"),
			Metadata: metadata(r, "login", "html_url"),
		}
	},
}

// GitHubStrategy logs users in with GitHub. Users with a private email get it
// resolved from /user/emails.
type GitHubStrategy struct {
	*OAuth2Strategy
	emailsURL string
}

// NewGitHubStrategy creates a GitHub strategy. PKCE is off by default.
func NewGitHubStrategy(clientID, clientSecret string, scopes []string, redirectURL, failureRedirect string, opts ...Option) (*GitHubStrategy, error) {
	base, err := newOAuth2Strategy(githubDef, clientID, clientSecret, scopes, redirectURL, failureRedirect, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	return &GitHubStrategy{
		OAuth2Strategy: base,
		emailsURL:      strings.TrimSuffix(base.profileURL, "/") + "/emails",
	}, nil
}

func (s *GitHubStrategy) FetchProfile(ctx context.Context, token *oauth2.Token) (*models.Profile, error) {
	profile, err := s.OAuth2Strategy.FetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	if profile.User.Email != "" {
		return profile, nil
	}

	emails, err := s.getJSON(ctx, token, s.emailsURL)
	if err != nil {
		// email is optional, the login still succeeds
		logger.Warn("Failed to resolve GitHub email", zap.Error(err))
		return profile, nil
	}
	profile.User.Email = primaryEmail(emails)
	return profile, nil
}

// primaryEmail picks the primary verified address, else the first verified one.
func primaryEmail(emails gjson.Result) string {
	var fallback string
	for _, e := range emails.Array() {
		if !e.Get("verified").Bool() {
			continue
		}
		if e.Get("primary").Bool() {
			return e.Get("email").String()
		}
		if fallback == "" {
			fallback = e.Get("email").String()
		}
	}
	return fallback
}
