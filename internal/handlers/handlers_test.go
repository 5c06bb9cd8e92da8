package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/auth/devauth"
	"github.com/apexdx/docsgate/internal/cache"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/apexdx/docsgate/internal/middleware"
	"github.com/apexdx/docsgate/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	enforce := false
	return config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			BaseURL:        "http://127.0.0.1:8080",
			CookieName:     "docsgate-session",
			CookieHTTPOnly: true,
			CookieSameSite: "lax",
			SessionTTL:     time.Hour,
		},
		Docs: config.DocsConfig{
			URL:         "http://127.0.0.1:3000",
			DefaultPath: "/",
		},
		Access: config.AccessConfig{Enforce: &enforce},
	}
}

type testEnv struct {
	cfg     config.Config
	manager *auth.Manager
	store   cache.Cache
	logger  *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig()
	store := cache.NewMemoryCache()
	t.Cleanup(func() { store.Close() })

	manager := auth.NewManager(auth.Options{
		Store:           store,
		SessionTTL:      cfg.Server.SessionTTL,
		DefaultReturnTo: cfg.Docs.DefaultPath,
	})

	provider, err := devauth.NewProvider("dev", config.DevConfig{
		Subject: "dev-user",
		Email:   "dev@example.com",
		Name:    "Dev User",
	}, cfg.Server.BaseURL+"/auth-redirect")
	require.NoError(t, err)

	manager.Initialize(context.Background(), func(ctx context.Context) (auth.Provider, error) {
		return provider, nil
	})

	return &testEnv{
		cfg:     cfg,
		manager: manager,
		store:   store,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// signIn drives the full login round trip: /login, then the provider
// redirect back through /auth-redirect. It returns the session cookie
// and the final redirect target.
func signIn(t *testing.T, env *testEnv, returnTo string) (*http.Cookie, string) {
	t.Helper()

	login := NewLoginHandler(env.cfg, env.manager, env.logger)
	callback := NewCallbackHandler(env.cfg, env.manager, env.logger)

	req := httptest.NewRequest(http.MethodGet, "/login?return_to="+url.QueryEscape(returnTo), nil)
	w := httptest.NewRecorder()
	login.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == security.StateCookieName {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie, "login must set the state cookie")

	// The dev provider redirects straight back to the return route.
	providerURL, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/auth-redirect", providerURL.Path)

	req = httptest.NewRequest(http.MethodGet, providerURL.String(), nil)
	req.AddCookie(stateCookie)
	w = httptest.NewRecorder()
	callback.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == env.cfg.Server.CookieName && c.Value != "" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "callback must set the session cookie")

	return sessionCookie, w.Header().Get("Location")
}

func TestLoginRoundTrip_LandsOnOriginalPath(t *testing.T) {
	env := newTestEnv(t)

	// Visitor on /docs/intro clicks Login; after the provider round
	// trip they end up exactly where they started.
	_, landed := signIn(t, env, "/docs/intro")
	assert.Equal(t, "/docs/intro", landed)
}

func TestCallback_SecondLoadGoesToSiteRoot(t *testing.T) {
	env := newTestEnv(t)
	callback := NewCallbackHandler(env.cfg, env.manager, env.logger)

	login := NewLoginHandler(env.cfg, env.manager, env.logger)
	req := httptest.NewRequest(http.MethodGet, "/login?return_to=%2Fdocs%2Fintro", nil)
	w := httptest.NewRecorder()
	login.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == security.StateCookieName {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)

	providerURL, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	// First load consumes the pending return path.
	req = httptest.NewRequest(http.MethodGet, providerURL.String(), nil)
	req.AddCookie(stateCookie)
	w = httptest.NewRecorder()
	callback.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/docs/intro", w.Header().Get("Location"))

	// Second load finds nothing stored and navigates to the site root.
	req = httptest.NewRequest(http.MethodGet, providerURL.String(), nil)
	req.AddCookie(stateCookie)
	w = httptest.NewRecorder()
	callback.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestCallback_StateMismatch(t *testing.T) {
	env := newTestEnv(t)
	callback := NewCallbackHandler(env.cfg, env.manager, env.logger)

	req := httptest.NewRequest(http.MethodGet, "/auth-redirect?code=x&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: security.StateCookieName, Value: "different"})
	w := httptest.NewRecorder()
	callback.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestCallback_ProviderError(t *testing.T) {
	env := newTestEnv(t)
	callback := NewCallbackHandler(env.cfg, env.manager, env.logger)

	req := httptest.NewRequest(http.MethodGet, "/auth-redirect?error=access_denied&error_description=cancelled", nil)
	w := httptest.NewRecorder()
	callback.ServeHTTP(w, req)

	// Never a crashed page: the visitor lands back on the site.
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLogin_AlreadyAuthenticated(t *testing.T) {
	env := newTestEnv(t)
	sessionCookie, _ := signIn(t, env, "/docs/intro")

	login := NewLoginHandler(env.cfg, env.manager, env.logger)
	req := httptest.NewRequest(http.MethodGet, "/login?return_to=%2Fdocs%2Fquery", nil)
	req.AddCookie(sessionCookie)
	w := httptest.NewRecorder()
	login.ServeHTTP(w, req)

	// No provider round trip: straight to the destination.
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/docs/query", w.Header().Get("Location"))
}

func TestLogin_ReturnPathFromReferer(t *testing.T) {
	env := newTestEnv(t)
	login := NewLoginHandler(env.cfg, env.manager, env.logger)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Referer", "http://127.0.0.1:8080/docs/orders")
	w := httptest.NewRecorder()
	login.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	providerURL, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == security.StateCookieName {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)

	callback := NewCallbackHandler(env.cfg, env.manager, env.logger)
	req = httptest.NewRequest(http.MethodGet, providerURL.String(), nil)
	req.AddCookie(stateCookie)
	w = httptest.NewRecorder()
	callback.ServeHTTP(w, req)

	assert.Equal(t, "/docs/orders", w.Header().Get("Location"))
}

func TestLogin_NotReady(t *testing.T) {
	env := newTestEnv(t)

	// A manager whose initialization failed refuses login without
	// crashing the page.
	store := cache.NewMemoryCache()
	t.Cleanup(func() { store.Close() })
	manager := auth.NewManager(auth.Options{Store: store})
	manager.Initialize(context.Background(), func(ctx context.Context) (auth.Provider, error) {
		return nil, assert.AnError
	})

	login := NewLoginHandler(env.cfg, manager, env.logger)
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	login.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLogout_ClearsSession(t *testing.T) {
	env := newTestEnv(t)
	sessionCookie, _ := signIn(t, env, "/docs/intro")

	logout := NewLogoutHandler(env.cfg, env.manager, env.logger)
	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(sessionCookie)
	w := httptest.NewRecorder()
	logout.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == env.cfg.Server.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "logout must clear the session cookie")

	status := env.manager.Status(context.Background(), sessionCookie.Value)
	assert.False(t, status.Authenticated)
}

func TestLogout_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	logout := NewLogoutHandler(env.cfg, env.manager, env.logger)
	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	w := httptest.NewRecorder()
	logout.ServeHTTP(w, req)

	// Invoked unconditionally, lands on the site root, no crash.
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestStatus_Reactive(t *testing.T) {
	env := newTestEnv(t)
	csrf := middleware.NewCSRFMiddleware(env.store, env.logger)
	status := NewStatusHandler(env.cfg, env.manager, csrf, env.logger)

	// Unauthenticated.
	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	w := httptest.NewRecorder()
	status.ServeHTTP(w, req)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Ready)
	assert.False(t, resp.Authenticated)
	assert.Nil(t, resp.Account)

	// Authenticated.
	sessionCookie, _ := signIn(t, env, "/")
	req = httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(sessionCookie)
	w = httptest.NewRecorder()
	status.ServeHTTP(w, req)

	resp = StatusResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Authenticated)
	require.NotNil(t, resp.Account)
	assert.Equal(t, "dev-user", resp.Account.Subject)
	assert.NotEmpty(t, resp.CSRFToken)
}

func TestToken_NoSession_RedirectsToLoginOnce(t *testing.T) {
	env := newTestEnv(t)
	token := NewTokenHandler(env.cfg, env.manager, env.logger)

	// Browser navigation: one login redirect, no token.
	req := httptest.NewRequest(http.MethodGet, "/auth/token?return_to=%2Fdocs%2Fintro", nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	token.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", location.Path)
	assert.Equal(t, "/docs/intro", location.Query().Get("return_to"))

	// Script callers get the login URL instead of a redirect.
	req = httptest.NewRequest(http.MethodGet, "/auth/token", nil)
	req.Header.Set("Accept", "application/json")
	w = httptest.NewRecorder()
	token.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var errResp struct {
		Error    string `json:"error"`
		LoginURL string `json:"login_url"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	assert.Equal(t, "login_required", errResp.Error)
	assert.NotEmpty(t, errResp.LoginURL)
}

func TestToken_WithSession_ReturnsTokenWithoutRedirect(t *testing.T) {
	env := newTestEnv(t)
	sessionCookie, _ := signIn(t, env, "/")

	token := NewTokenHandler(env.cfg, env.manager, env.logger)

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/auth/token", nil)
		req.AddCookie(sessionCookie)
		w := httptest.NewRecorder()
		token.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp TokenResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.NotEmpty(t, resp.AccessToken)

		// Idempotent within the validity window.
		if i == 0 {
			first = resp.AccessToken
		} else {
			assert.Equal(t, first, resp.AccessToken)
		}
	}
}
