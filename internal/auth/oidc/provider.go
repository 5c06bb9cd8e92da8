package oidc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Provider implements auth.Provider against a hosted OIDC identity
// service using the authorization-code flow with PKCE.
type Provider struct {
	name string
	cfg  config.OIDCConfig

	provider      *oidc.Provider
	oauth2Config  oauth2.Config
	verifier      *oidc.IDTokenVerifier
	endSessionURL string
	postLogoutURL string
}

// NewProvider discovers provider metadata from the authority URL. This
// is the one network call made during initialization; the caller
// decides how a failure degrades the site.
func NewProvider(ctx context.Context, name string, cfg config.OIDCConfig, redirectURL string) (*Provider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Authority)
	if err != nil {
		return nil, fmt.Errorf("failed to discover provider metadata: %w", err)
	}

	oauth2Config := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       cfg.Scopes,
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	// end_session_endpoint is optional provider metadata; without it
	// logout falls back to the post-logout destination directly.
	var extra struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return nil, fmt.Errorf("failed to parse provider metadata: %w", err)
	}

	return &Provider{
		name:          name,
		cfg:           cfg,
		provider:      provider,
		oauth2Config:  oauth2Config,
		verifier:      verifier,
		endSessionURL: extra.EndSessionEndpoint,
		postLogoutURL: cfg.PostLogoutURL,
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Type() string {
	return "oidc"
}

func (p *Provider) InitiateLogin(ctx context.Context, returnTo string) (*auth.LoginRedirect, error) {
	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, &auth.ProviderError{Kind: auth.KindProvider, Err: fmt.Errorf("generate code verifier: %w", err)}
	}

	state := uuid.New().String()
	nonce := uuid.New().String()

	authURL := p.oauth2Config.AuthCodeURL(
		state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	return &auth.LoginRedirect{
		URL: authURL,
		Pending: auth.PendingLogin{
			State:        state,
			Nonce:        nonce,
			CodeVerifier: codeVerifier,
			ReturnTo:     returnTo,
			CreatedAt:    time.Now(),
		},
	}, nil
}

func (p *Provider) CompleteLogin(ctx context.Context, code string, pending auth.PendingLogin) (*auth.Session, error) {
	if code == "" {
		return nil, &auth.ProviderError{Kind: auth.KindProvider, Err: errors.New("missing code parameter")}
	}

	oauth2Token, err := p.oauth2Config.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", pending.CodeVerifier),
	)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to exchange code: %w", err), err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, &auth.ProviderError{Kind: auth.KindProvider, Err: errors.New("no id_token in token response")}
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, &auth.ProviderError{Kind: auth.KindProvider, Err: fmt.Errorf("failed to verify ID token: %w", err)}
	}

	if idToken.Nonce != pending.Nonce {
		return nil, &auth.ProviderError{Kind: auth.KindProvider, Err: errors.New("nonce mismatch")}
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, &auth.ProviderError{Kind: auth.KindProvider, Err: fmt.Errorf("failed to parse claims: %w", err)}
	}

	return &auth.Session{
		Account:      accountFromClaims(idToken.Subject, claims),
		Claims:       claims,
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		IDToken:      rawIDToken,
		TokenExpiry:  oauth2Token.Expiry,
	}, nil
}

func (p *Provider) RefreshTokens(ctx context.Context, session *auth.Session) (*auth.Session, error) {
	if session.RefreshToken == "" {
		return nil, &auth.ProviderError{Kind: auth.KindInteractionRequired, Err: errors.New("no refresh token available")}
	}

	tokenSource := p.oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: session.RefreshToken,
	})

	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, classify(fmt.Errorf("failed to refresh token: %w", err), err)
	}

	if rawIDToken, ok := newToken.Extra("id_token").(string); ok {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, &auth.ProviderError{Kind: auth.KindProvider, Err: fmt.Errorf("failed to verify refreshed ID token: %w", err)}
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			return nil, &auth.ProviderError{Kind: auth.KindProvider, Err: fmt.Errorf("failed to parse refreshed claims: %w", err)}
		}

		session.Claims = claims
		session.Account = accountFromClaims(idToken.Subject, claims)
		session.IDToken = rawIDToken
	}

	session.AccessToken = newToken.AccessToken
	if newToken.RefreshToken != "" {
		session.RefreshToken = newToken.RefreshToken
	}
	session.TokenExpiry = newToken.Expiry

	return session, nil
}

func (p *Provider) LogoutURL(session *auth.Session) string {
	if p.endSessionURL == "" {
		return p.postLogoutURL
	}

	q := url.Values{}
	if session != nil && session.IDToken != "" {
		q.Set("id_token_hint", session.IDToken)
	}
	if p.postLogoutURL != "" {
		q.Set("post_logout_redirect_uri", p.postLogoutURL)
	}

	if len(q) == 0 {
		return p.endSessionURL
	}
	return p.endSessionURL + "?" + q.Encode()
}

// classify maps token-endpoint failures onto the tagged error kinds.
// Providers report consent or re-authentication needs through standard
// error codes on the token response; those escalate to an interactive
// redirect instead of failing the call outright.
func classify(wrapped, cause error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(cause, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "interaction_required", "consent_required", "login_required", "invalid_grant":
			return &auth.ProviderError{Kind: auth.KindInteractionRequired, Err: wrapped}
		}
	}
	return &auth.ProviderError{Kind: auth.KindProvider, Err: wrapped}
}

func accountFromClaims(subject string, claims map[string]interface{}) auth.Account {
	account := auth.Account{Subject: subject}
	if email, ok := claims["email"].(string); ok {
		account.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		account.Name = name
	}
	return account
}

func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
