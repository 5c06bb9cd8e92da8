package auth

import "context"

// Provider mediates one identity provider. Implementations return
// *ProviderError for failures that callers need to classify.
type Provider interface {
	Name() string
	Type() string

	// InitiateLogin builds the sign-in redirect for the given return
	// path. Control leaves the page after the caller issues the
	// redirect; the flow resumes in CompleteLogin.
	InitiateLogin(ctx context.Context, returnTo string) (*LoginRedirect, error)

	// CompleteLogin exchanges the authorization code carried back by
	// the provider redirect and establishes a session.
	CompleteLogin(ctx context.Context, code string, pending PendingLogin) (*Session, error)

	// RefreshTokens performs a silent, non-interactive token
	// acquisition for an existing session.
	RefreshTokens(ctx context.Context, session *Session) (*Session, error)

	// LogoutURL returns the provider sign-out URL for the session, or
	// "" when the provider has no end-session endpoint.
	LogoutURL(session *Session) string
}
