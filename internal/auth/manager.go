package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/apexdx/docsgate/internal/cache"
	"github.com/google/uuid"
)

const (
	pendingKeyPrefix = "pending:"
	sessionKeyPrefix = "session:"

	defaultPendingTTL = 10 * time.Minute
)

// Factory constructs the identity-provider client. It is invoked once,
// during manager initialization, because OIDC discovery needs a network
// round trip.
type Factory func(ctx context.Context) (Provider, error)

// Options groups dependencies for Manager.
type Options struct {
	Store      cache.Cache
	Logger     *slog.Logger
	SessionTTL time.Duration
	PendingTTL time.Duration
	// DefaultReturnTo is where visitors land when no return path was
	// stored. Defaults to "/".
	DefaultReturnTo string
}

// Manager owns the authentication session lifecycle and mediates all
// calls to the identity provider. It is an explicit, injectable
// instance: every consumer receives it through construction, and tests
// can run several independent managers side by side.
type Manager struct {
	store           cache.Cache
	logger          *slog.Logger
	sessionTTL      time.Duration
	pendingTTL      time.Duration
	defaultReturnTo string

	initOnce sync.Once

	mu       sync.RWMutex
	ready    bool
	provider Provider
	initErr  error
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pendingTTL := opts.PendingTTL
	if pendingTTL == 0 {
		pendingTTL = defaultPendingTTL
	}
	sessionTTL := opts.SessionTTL
	if sessionTTL == 0 {
		sessionTTL = 24 * time.Hour
	}
	defaultReturnTo := opts.DefaultReturnTo
	if defaultReturnTo == "" {
		defaultReturnTo = "/"
	}

	return &Manager{
		store:           opts.Store,
		logger:          logger,
		sessionTTL:      sessionTTL,
		pendingTTL:      pendingTTL,
		defaultReturnTo: defaultReturnTo,
	}
}

// Initialize constructs the identity-provider client. It runs at most
// once: a failure is logged a single time and the manager settles ready
// but unauthenticated, so the rest of the site stays usable while login
// is refused.
func (m *Manager) Initialize(ctx context.Context, factory Factory) {
	m.initOnce.Do(func() {
		provider, err := factory(ctx)

		m.mu.Lock()
		defer m.mu.Unlock()
		m.ready = true
		if err != nil {
			m.initErr = err
			m.logger.Error("identity provider initialization failed", "error", err)
			return
		}
		m.provider = provider
		m.logger.Info("identity provider initialized",
			"name", provider.Name(),
			"type", provider.Type(),
		)
	})
}

// Ready reports whether initialization has completed, successfully or
// not. Surface handlers must not act on session state before this is
// true.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// InitError returns the initialization failure, if any.
func (m *Manager) InitError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initErr
}

func (m *Manager) currentProvider() (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready || m.provider == nil {
		return nil, ErrNotReady
	}
	return m.provider, nil
}

// Login begins the sign-in flow: it persists the pending-login record
// (including the visitor's return path) and returns the provider
// redirect. The continuation happens in CompleteLogin after the
// provider sends the visitor back.
func (m *Manager) Login(ctx context.Context, returnTo string) (*LoginRedirect, error) {
	provider, err := m.currentProvider()
	if err != nil {
		return nil, err
	}

	redirect, err := provider.InitiateLogin(ctx, SafeReturnPath(returnTo, m.defaultReturnTo))
	if err != nil {
		return nil, fmt.Errorf("initiate login: %w", err)
	}

	data, err := json.Marshal(redirect.Pending)
	if err != nil {
		return nil, fmt.Errorf("marshal pending login: %w", err)
	}
	if err := m.store.Set(ctx, pendingKeyPrefix+redirect.Pending.State, data, m.pendingTTL); err != nil {
		return nil, fmt.Errorf("store pending login: %w", err)
	}

	return redirect, nil
}

// CompleteLogin finishes the flow on the return route. The pending
// record is consumed exactly once: a second completion with the same
// state finds nothing and fails. Returns the new session and the
// visitor's original return path.
func (m *Manager) CompleteLogin(ctx context.Context, code, state string) (*Session, string, error) {
	provider, err := m.currentProvider()
	if err != nil {
		return nil, "", err
	}

	pending, err := m.consumePending(ctx, state)
	if err != nil {
		return nil, "", err
	}

	session, err := provider.CompleteLogin(ctx, code, *pending)
	if err != nil {
		return nil, "", fmt.Errorf("complete login: %w", err)
	}

	session.ID = uuid.New().String()
	session.Provider = provider.Name()
	session.CreatedAt = time.Now()
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = session.CreatedAt.Add(m.sessionTTL)
	}

	if err := m.saveSession(ctx, session); err != nil {
		return nil, "", err
	}

	returnTo := pending.ReturnTo
	if returnTo == "" {
		returnTo = m.defaultReturnTo
	}

	return session, returnTo, nil
}

func (m *Manager) consumePending(ctx context.Context, state string) (*PendingLogin, error) {
	if state == "" {
		return nil, fmt.Errorf("missing state parameter")
	}

	key := pendingKeyPrefix + state
	data, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired state: %w", err)
	}

	// Delete before use so the record is consumed at most once even if
	// the exchange below fails.
	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.Warn("failed to delete pending login", "error", err)
	}

	var pending PendingLogin
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("unmarshal pending login: %w", err)
	}

	return &pending, nil
}

// Session retrieves an active session by ID, treating expired or
// missing entries as no session.
func (m *Manager) Session(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	data, err := m.store.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return nil, ErrNoSession
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		if err := m.store.Delete(ctx, sessionKeyPrefix+sessionID); err != nil {
			m.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, ErrNoSession
	}

	return &session, nil
}

// Logout removes the server-side session and returns the provider
// sign-out URL, or "" when there is nothing to hand to the provider.
// It never fails hard: a manager that never finished initializing, or a
// request with no session, logs and reports no redirect.
func (m *Manager) Logout(ctx context.Context, sessionID string) string {
	if !m.Ready() {
		m.logger.Warn("logout before initialization completed")
		return ""
	}

	session, err := m.Session(ctx, sessionID)
	if err != nil {
		return ""
	}

	if err := m.store.Delete(ctx, sessionKeyPrefix+sessionID); err != nil {
		m.logger.Warn("failed to delete session", "error", err)
	}

	provider, err := m.currentProvider()
	if err != nil {
		return ""
	}

	return provider.LogoutURL(session)
}

// AcquireToken returns an access token for the session. With no active
// session it returns ErrNoSession and the caller falls back to a login
// redirect. A valid cached token is returned without any provider round
// trip; otherwise a silent refresh is attempted, and interaction-
// required failures surface as a tagged *ProviderError for the caller
// to escalate.
func (m *Manager) AcquireToken(ctx context.Context, sessionID string) (*Token, error) {
	session, err := m.Session(ctx, sessionID)
	if err != nil {
		return nil, ErrNoSession
	}

	if session.AccessToken != "" && time.Until(session.TokenExpiry) > 30*time.Second {
		return &Token{AccessToken: session.AccessToken, Expiry: session.TokenExpiry}, nil
	}

	provider, err := m.currentProvider()
	if err != nil {
		return nil, err
	}

	refreshed, err := provider.RefreshTokens(ctx, session)
	if err != nil {
		if IsInteractionRequired(err) {
			return nil, err
		}
		m.logger.Error("silent token acquisition failed", "session_id", session.ID, "error", err)
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	if err := m.saveSession(ctx, refreshed); err != nil {
		m.logger.Warn("failed to persist refreshed session", "error", err)
	}

	return &Token{AccessToken: refreshed.AccessToken, Expiry: refreshed.TokenExpiry}, nil
}

// Status exposes {ready, authenticated, account} to consumers.
func (m *Manager) Status(ctx context.Context, sessionID string) Status {
	status := Status{Ready: m.Ready()}

	if !status.Ready {
		return status
	}

	session, err := m.Session(ctx, sessionID)
	if err != nil {
		return status
	}

	account := session.Account
	status.Authenticated = true
	status.Account = &account
	return status
}

func (m *Manager) saveSession(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := m.store.Set(ctx, sessionKeyPrefix+session.ID, data, ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

// SafeReturnPath restricts return paths to site-relative ones so the
// redirect round trip can never be pointed off-site.
func SafeReturnPath(path, fallback string) string {
	if path == "" {
		return fallback
	}

	u, err := url.Parse(path)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return fallback
	}

	return path
}
