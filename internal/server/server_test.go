package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/brizzai/passport/internal/auth"
	"github.com/brizzai/passport/internal/auth/strategies"
	"github.com/brizzai/passport/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPassport(t *testing.T) *auth.Passport {
	t.Helper()
	p := auth.New()
	t.Cleanup(func() { _ = p.Close() })

	gh, err := strategies.NewGitHubStrategy("client", "secret", nil, "http://127.0.0.1/auth/github/callback", "")
	require.NoError(t, err)
	p.Using("github", gh)
	return p
}

func TestHandlerRoutes(t *testing.T) {
	s := NewServer(&config.Config{}, newTestPassport(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/github", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", loc.Host)
	assert.Equal(t, "client", loc.Query().Get("client_id"))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state=nope&code=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := NewServer(&config.Config{}, newTestPassport(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartInvalidAddress(t *testing.T) {
	s := NewServer(&config.Config{Server: config.ServerConfig{Host: "256.0.0.1", Port: 1}}, newTestPassport(t))
	err := s.Start(context.Background())
	assert.Error(t, err)
}
