package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/brizzai/passport/internal/auth"
	"github.com/brizzai/passport/internal/auth/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeStrategy struct {
	name    string
	failure string
	exchErr error
}

func (s *fakeStrategy) Name() string            { return s.name }
func (s *fakeStrategy) FailureRedirect() string { return s.failure }

func (s *fakeStrategy) AuthorizeURL(state string) (string, string) {
	return "https://idp.example.com/authorize?" + url.Values{"state": {state}}.Encode(), ""
}

func (s *fakeStrategy) ExchangeCode(context.Context, string, string) (*oauth2.Token, error) {
	if s.exchErr != nil {
		return nil, s.exchErr
	}
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func (s *fakeStrategy) FetchProfile(_ context.Context, token *oauth2.Token) (*models.Profile, error) {
	return &models.Profile{
		Provider:    s.name,
		AccessToken: token.AccessToken,
		User:        models.UserInfo{ID: "42", Email: "user@example.com"},
	}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *auth.Passport) {
	t.Helper()
	p := auth.New()
	t.Cleanup(func() { _ = p.Close() })
	p.Using("github", &fakeStrategy{name: "github", failure: "/"})
	p.Using("discord", &fakeStrategy{name: "discord"})
	p.Using("broken", &fakeStrategy{name: "broken", exchErr: errors.New("invalid_grant")})

	srv := httptest.NewServer(NewHandler(p).Routes())
	t.Cleanup(srv.Close)
	return srv, p
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

// login follows /auth/{provider} and returns the issued state.
func login(t *testing.T, srv *httptest.Server, provider string) string {
	t.Helper()
	resp, err := noRedirectClient().Get(srv.URL + "/auth/" + provider)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", loc.Host)
	return loc.Query().Get("state")
}

func callback(t *testing.T, srv *httptest.Server, path string, q url.Values) *http.Response {
	t.Helper()
	resp, err := noRedirectClient().Get(srv.URL + path + "?" + q.Encode())
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIndexListsStrategies(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for _, name := range []string{"broken", "discord", "github"} {
		assert.Contains(t, string(body), `href="/auth/`+name+`"`)
	}
}

func TestLoginUnknownStrategy(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := noRedirectClient().Get(srv.URL + "/auth/myspace")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCallbackReturnsProfile(t *testing.T) {
	srv, p := newTestServer(t)
	state := login(t, srv, "github")
	assert.Equal(t, 1, p.Pending())

	resp := callback(t, srv, "/auth/github/callback", url.Values{"code": {"abc"}, "state": {state}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var profile models.Profile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profile))
	assert.Equal(t, "github", profile.Provider)
	assert.Equal(t, "user@example.com", profile.User.Email)
	assert.Zero(t, p.Pending())

	replay := callback(t, srv, "/auth/github/callback", url.Values{"code": {"abc"}, "state": {state}})
	assert.Equal(t, http.StatusBadRequest, replay.StatusCode)
}

func TestSharedCallbackRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	state := login(t, srv, "discord")

	resp := callback(t, srv, "/auth/callback", url.Values{"code": {"abc"}, "state": {state}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCallbackErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name     string
		provider string
		query    func(state string) url.Values
		status   int
		location string
	}{
		{
			name:     "forged state",
			provider: "github",
			query:    func(string) url.Values { return url.Values{"code": {"abc"}, "state": {"forged"}} },
			status:   http.StatusBadRequest,
		},
		{
			name:     "denied with failure redirect",
			provider: "github",
			query:    func(s string) url.Values { return url.Values{"error": {"access_denied"}, "state": {s}} },
			status:   http.StatusFound,
			location: "/",
		},
		{
			name:     "denied without failure redirect",
			provider: "discord",
			query:    func(s string) url.Values { return url.Values{"error": {"access_denied"}, "state": {s}} },
			status:   http.StatusForbidden,
		},
		{
			name:     "missing code",
			provider: "discord",
			query:    func(s string) url.Values { return url.Values{"state": {s}} },
			status:   http.StatusBadRequest,
		},
		{
			name:     "exchange failure",
			provider: "broken",
			query:    func(s string) url.Values { return url.Values{"code": {"abc"}, "state": {s}} },
			status:   http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := login(t, srv, tt.provider)
			resp := callback(t, srv, "/auth/"+tt.provider+"/callback", tt.query(state))
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.location != "" {
				assert.Equal(t, tt.location, resp.Header.Get("Location"))
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	login(t, srv, "github")

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["pending"])
}
