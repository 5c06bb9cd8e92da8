package devauth

import (
	"context"
	"net/url"
	"testing"

	"github.com/apexdx/docsgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_ShortCircuitsRedirect(t *testing.T) {
	p, err := NewProvider("dev", config.DevConfig{
		Subject: "dev-user",
		Email:   "dev@example.com",
		Name:    "Dev User",
	}, "http://localhost:8080/auth-redirect")
	require.NoError(t, err)

	redirect, err := p.InitiateLogin(context.Background(), "/docs/intro")
	require.NoError(t, err)

	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	assert.Equal(t, "/auth-redirect", u.Path)
	assert.Equal(t, redirect.Pending.State, u.Query().Get("state"))
	assert.NotEmpty(t, u.Query().Get("code"))
	assert.Equal(t, "/docs/intro", redirect.Pending.ReturnTo)

	session, err := p.CompleteLogin(context.Background(), u.Query().Get("code"), redirect.Pending)
	require.NoError(t, err)
	assert.Equal(t, "dev-user", session.Account.Subject)
	assert.NotEmpty(t, session.AccessToken)
}

func TestProvider_RequiresIdentity(t *testing.T) {
	_, err := NewProvider("dev", config.DevConfig{Email: "dev@example.com"}, "http://localhost/auth-redirect")
	assert.Error(t, err)

	_, err = NewProvider("dev", config.DevConfig{Subject: "dev-user"}, "http://localhost/auth-redirect")
	assert.Error(t, err)
}

func TestProvider_RefreshRotatesToken(t *testing.T) {
	p, err := NewProvider("dev", config.DevConfig{
		Subject: "dev-user",
		Email:   "dev@example.com",
	}, "http://localhost/auth-redirect")
	require.NoError(t, err)

	redirect, err := p.InitiateLogin(context.Background(), "/")
	require.NoError(t, err)
	session, err := p.CompleteLogin(context.Background(), "code", redirect.Pending)
	require.NoError(t, err)

	before := session.AccessToken
	refreshed, err := p.RefreshTokens(context.Background(), session)
	require.NoError(t, err)
	assert.NotEqual(t, before, refreshed.AccessToken)

	assert.Empty(t, p.LogoutURL(session))
}
