package devauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/google/uuid"
)

// Provider is a config-driven identity provider for local development.
// It short-circuits the redirect round trip by sending the browser
// straight back to the return route with locally generated state, and
// signs in a fixed identity.
type Provider struct {
	name        string
	account     auth.Account
	callbackURL string
	tokenTTL    time.Duration
}

func NewProvider(name string, cfg config.DevConfig, callbackURL string) (*Provider, error) {
	if cfg.Subject == "" {
		return nil, errors.New("dev auth: subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: email is required")
	}

	return &Provider{
		name: name,
		account: auth.Account{
			Subject: cfg.Subject,
			Email:   cfg.Email,
			Name:    cfg.Name,
		},
		callbackURL: callbackURL,
		tokenTTL:    time.Hour,
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Type() string {
	return "dev"
}

func (p *Provider) InitiateLogin(ctx context.Context, returnTo string) (*auth.LoginRedirect, error) {
	state := uuid.New().String()

	q := url.Values{}
	q.Set("code", uuid.New().String())
	q.Set("state", state)

	return &auth.LoginRedirect{
		URL: p.callbackURL + "?" + q.Encode(),
		Pending: auth.PendingLogin{
			State:     state,
			ReturnTo:  returnTo,
			CreatedAt: time.Now(),
		},
	}, nil
}

func (p *Provider) CompleteLogin(ctx context.Context, code string, pending auth.PendingLogin) (*auth.Session, error) {
	if code == "" {
		return nil, &auth.ProviderError{Kind: auth.KindProvider, Err: errors.New("missing code parameter")}
	}

	return &auth.Session{
		Account:     p.account,
		AccessToken: uuid.New().String(),
		TokenExpiry: time.Now().Add(p.tokenTTL),
	}, nil
}

func (p *Provider) RefreshTokens(ctx context.Context, session *auth.Session) (*auth.Session, error) {
	session.AccessToken = uuid.New().String()
	session.TokenExpiry = time.Now().Add(p.tokenTTL)
	return session, nil
}

func (p *Provider) LogoutURL(session *auth.Session) string {
	return ""
}
