package strategies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brizzai/passport/internal/auth/constants"
	"github.com/brizzai/passport/internal/auth/models"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

var googleDef = providerDef{
	name:          constants.ProviderGoogle,
	endpoint:      google.Endpoint,
	profileURL:    "https://openidconnect.googleapis.com/v1/userinfo",
	defaultScopes: []string{oidc.ScopeOpenID, "profile", "email"},
	pkce:          true,
	mapUser: func(r gjson.Result) models.UserInfo {
		return models.UserInfo{
			ID:       firstString(r, "sub", "id"),
			Email:    firstString(r, "email"),
			Name:     firstString(r, "name"),
			Picture:  firstString(r, "picture"),
			Metadata: metadata(r, "email_verified", "given_name", "family_name", "locale"),
		}
	},
}

// ErrSubjectMismatch means the userinfo response belongs to a different user
// than the verified id_token.
var ErrSubjectMismatch = errors.New("userinfo subject does not match id_token")

// WithIDTokenVerification makes the Google strategy verify the id_token
// returned by the token endpoint against Google's published keys.
func WithIDTokenVerification() Option {
	return func(o *options) {
		o.verifyIDToken = true
	}
}

// WithIDTokenVerifier verifies Google id_tokens with v instead of Google's
// remote key set.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) Option {
	return func(o *options) {
		o.verifier = v
	}
}

// GoogleStrategy logs users in with Google, optionally verifying the OpenID
// Connect id_token.
type GoogleStrategy struct {
	*OAuth2Strategy
	verifier *oidc.IDTokenVerifier
}

// NewGoogleStrategy creates a Google strategy. PKCE is on by default.
func NewGoogleStrategy(clientID, clientSecret string, scopes []string, redirectURL, failureRedirect string, opts ...Option) (*GoogleStrategy, error) {
	o := applyOptions(opts)
	base, err := newOAuth2Strategy(googleDef, clientID, clientSecret, scopes, redirectURL, failureRedirect, o)
	if err != nil {
		return nil, err
	}

	verifier := o.verifier
	if verifier == nil && o.verifyIDToken {
		// the key set is fetched lazily on first verification
		keySet := oidc.NewRemoteKeySet(base.clientContext(context.Background()), GoogleJWKSURL)
		verifier = oidc.NewVerifier(GoogleIssuer, keySet, &oidc.Config{ClientID: clientID})
	}

	return &GoogleStrategy{OAuth2Strategy: base, verifier: verifier}, nil
}

func (s *GoogleStrategy) FetchProfile(ctx context.Context, token *oauth2.Token) (*models.Profile, error) {
	var claims *googleClaims
	if s.verifier != nil {
		c, err := s.verifyIDToken(ctx, token)
		if err != nil {
			return nil, err
		}
		claims = c
	}

	profile, err := s.OAuth2Strategy.FetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims != nil {
		// userinfo for a different subject than the verified token is discarded
		if profile.User.ID != "" && profile.User.ID != claims.Sub {
			return nil, fmt.Errorf("%w: userinfo sub %q, id_token sub %q", ErrSubjectMismatch, profile.User.ID, claims.Sub)
		}
		claims.fill(&profile.User)
	}
	return profile, nil
}

type googleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (s *GoogleStrategy) verifyIDToken(ctx context.Context, token *oauth2.Token) (*googleClaims, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("no id_token in token response")
	}

	if s.httpClient != nil {
		ctx = oidc.ClientContext(ctx, s.httpClient)
	}
	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	return &claims, nil
}

// fill copies verified claims into fields the userinfo response left empty.
func (c *googleClaims) fill(user *models.UserInfo) {
	if user.ID == "" {
		user.ID = c.Sub
	}
	if user.Email == "" {
		user.Email = c.Email
	}
	if user.Name == "" {
		user.Name = c.Name
	}
	if user.Picture == "" {
		user.Picture = c.Picture
	}
	if user.Metadata == nil {
		user.Metadata = make(map[string]interface{})
	}
	// the claim only vouches for the address it names
	if c.Email != "" && strings.EqualFold(user.Email, c.Email) {
		user.Metadata["email_verified"] = c.EmailVerified
	}
	user.Metadata["id_token_verified"] = true
}
