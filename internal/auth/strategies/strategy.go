// Package strategies implements one login strategy per supported OAuth 2.0
// provider. Every strategy is an OAuth2Strategy configured with the provider's
// fixed endpoints and a mapping from its profile JSON to models.UserInfo; a few
// providers wrap it to add provider-specific steps.
package strategies

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/brizzai/passport/internal/auth/models"
	"github.com/brizzai/passport/internal/logger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// maxResponseSize caps profile responses read into memory.
const maxResponseSize = 1 << 20

var (
	// ErrInvalidConfig is returned by constructors for missing or malformed settings.
	ErrInvalidConfig = errors.New("invalid strategy configuration")
	// ErrUnknownProvider is returned by New for an unsupported provider kind.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Strategy is the capability every provider offers to the registry.
type Strategy interface {
	// Name returns the provider kind, e.g. "github".
	Name() string

	// AuthorizeURL returns the provider consent URL bound to state, and the
	// PKCE verifier that must be kept for ExchangeCode (empty without PKCE).
	AuthorizeURL(state string) (authURL, verifier string)

	// ExchangeCode trades an authorization code for tokens.
	ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error)

	// FetchProfile loads the user behind token from the provider's API.
	FetchProfile(ctx context.Context, token *oauth2.Token) (*models.Profile, error)

	// FailureRedirect is where the user goes after denying consent. Empty when unset.
	FailureRedirect() string
}

// Compile-time interface compliance check.
var _ Strategy = (*OAuth2Strategy)(nil)

// providerDef is the fixed, per-provider part of a strategy.
type providerDef struct {
	name          string
	endpoint      oauth2.Endpoint
	profileURL    string
	defaultScopes []string
	pkce          bool
	mapUser       func(gjson.Result) models.UserInfo
}

type options struct {
	pkce          *bool
	endpoint      *oauth2.Endpoint
	profileURL    string
	httpClient    *http.Client
	authParams    map[string]string
	tenant        string
	verifier      *oidc.IDTokenVerifier
	verifyIDToken bool
}

// Option customizes a strategy at construction.
type Option func(*options)

// WithPKCE turns PKCE (S256) on or off, overriding the provider default.
func WithPKCE(enabled bool) Option {
	return func(o *options) {
		o.pkce = &enabled
	}
}

// WithEndpoint replaces the provider's authorization and token URLs.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(o *options) {
		o.endpoint = &endpoint
	}
}

// WithProfileURL replaces the provider's profile endpoint.
func WithProfileURL(profileURL string) Option {
	return func(o *options) {
		o.profileURL = profileURL
	}
}

// WithHTTPClient sets the client used for token and profile requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithAuthParam adds a fixed query parameter to the authorization URL,
// e.g. prompt=consent.
func WithAuthParam(key, value string) Option {
	return func(o *options) {
		if o.authParams == nil {
			o.authParams = make(map[string]string)
		}
		o.authParams[key] = value
	}
}

// OAuth2Strategy is the shared authorization-code implementation.
type OAuth2Strategy struct {
	name            string
	config          *oauth2.Config
	profileURL      string
	failureRedirect string
	usePKCE         bool
	authParams      map[string]string
	httpClient      *http.Client
	mapUser         func(gjson.Result) models.UserInfo
}

func newOAuth2Strategy(
	def providerDef,
	clientID, clientSecret string,
	scopes []string,
	redirectURL, failureRedirect string,
	o *options,
) (*OAuth2Strategy, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: %s: client id is required", ErrInvalidConfig, def.name)
	}

	endpoint := def.endpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	profileURL := def.profileURL
	if o.profileURL != "" {
		profileURL = o.profileURL
	}

	urls := []struct{ field, raw string }{
		{"redirect url", redirectURL},
		{"authorization url", endpoint.AuthURL},
		{"token url", endpoint.TokenURL},
		{"profile url", profileURL},
	}
	if failureRedirect != "" {
		urls = append(urls, struct{ field, raw string }{"failure redirect", failureRedirect})
	}
	for _, u := range urls {
		if err := checkAbsoluteURL(u.raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrInvalidConfig, def.name, u.field, err)
		}
	}

	if len(scopes) == 0 {
		scopes = def.defaultScopes
	}
	usePKCE := def.pkce
	if o.pkce != nil {
		usePKCE = *o.pkce
	}

	s := &OAuth2Strategy{
		name: def.name,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			RedirectURL:  redirectURL,
			Scopes:       append([]string(nil), scopes...),
		},
		profileURL:      profileURL,
		failureRedirect: failureRedirect,
		usePKCE:         usePKCE,
		authParams:      o.authParams,
		httpClient:      o.httpClient,
		mapUser:         def.mapUser,
	}

	logger.Debug("Created strategy",
		zap.String("provider", s.name),
		zap.String("authorization_url", endpoint.AuthURL),
		zap.String("token_url", endpoint.TokenURL),
		zap.Bool("pkce", usePKCE),
	)
	return s, nil
}

func checkAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (s *OAuth2Strategy) Name() string {
	return s.name
}

func (s *OAuth2Strategy) FailureRedirect() string {
	return s.failureRedirect
}

// PKCE reports whether the strategy sends a code challenge.
func (s *OAuth2Strategy) PKCE() bool {
	return s.usePKCE
}

func (s *OAuth2Strategy) AuthorizeURL(state string) (string, string) {
	opts := make([]oauth2.AuthCodeOption, 0, len(s.authParams)+1)
	for k, v := range s.authParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	var verifier string
	if s.usePKCE {
		verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return s.config.AuthCodeURL(state, opts...), verifier
}

func (s *OAuth2Strategy) ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	logger.Info("Exchanging authorization code",
		zap.String("provider", s.name),
		zap.Bool("has_pkce_verifier", verifier != ""),
	)

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := s.config.Exchange(s.clientContext(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

func (s *OAuth2Strategy) FetchProfile(ctx context.Context, token *oauth2.Token) (*models.Profile, error) {
	result, err := s.getJSON(ctx, token, s.profileURL)
	if err != nil {
		return nil, err
	}
	return newProfile(s.name, token, s.mapUser(result), result), nil
}

// clientContext carries the configured HTTP client to x/oauth2.
func (s *OAuth2Strategy) clientContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// getJSON performs an authenticated GET and parses the JSON body.
func (s *OAuth2Strategy) getJSON(ctx context.Context, token *oauth2.Token, target string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.config.Client(s.clientContext(ctx), token)
	resp, err := client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to get user info: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("user info request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("failed to decode response: invalid JSON")
	}
	return gjson.ParseBytes(body), nil
}

func newProfile(provider string, token *oauth2.Token, user models.UserInfo, raw gjson.Result) *models.Profile {
	p := &models.Profile{
		Provider:     provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
		Expiry:       token.Expiry,
		User:         user,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		p.IDToken = idToken
	}
	if m, ok := raw.Value().(map[string]interface{}); ok {
		p.Raw = m
	}
	return p
}

// firstString returns the first non-empty string among paths.
func firstString(r gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := r.Get(path); v.Exists() && v.Type != gjson.Null {
			if s := v.String(); s != "" {
				return s
			}
		}
	}
	return ""
}

// metadata collects the given paths that are present in r.
func metadata(r gjson.Result, paths ...string) map[string]interface{} {
	m := make(map[string]interface{})
	for _, path := range paths {
		if v := r.Get(path); v.Exists() && v.Type != gjson.Null {
			m[path] = v.Value()
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
