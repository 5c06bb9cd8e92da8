package auth

import "time"

// Account is the read-only identity reference exposed to consumers.
type Account struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

type Session struct {
	ID        string                 `json:"id"`
	Provider  string                 `json:"provider"`
	Account   Account                `json:"account"`
	Claims    map[string]interface{} `json:"claims,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	ExpiresAt time.Time              `json:"expires_at"`

	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenExpiry  time.Time `json:"token_expiry,omitempty"`
}

// PendingLogin is the hand-off record for the redirect round trip:
// written before the visitor leaves for the identity provider, consumed
// exactly once by the return route. ReturnTo is the page the visitor was
// on when login began.
type PendingLogin struct {
	State        string    `json:"state"`
	Nonce        string    `json:"nonce"`
	CodeVerifier string    `json:"code_verifier"`
	ReturnTo     string    `json:"return_to"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRedirect carries everything needed to send the visitor to the
// identity provider: the sign-in URL and the pending record that lets
// the return route resume the flow.
type LoginRedirect struct {
	URL     string
	Pending PendingLogin
}

// Token is the result of an access-token acquisition.
type Token struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// Status is the readiness accessor surface: consumers read it, never
// write through it.
type Status struct {
	Ready         bool     `json:"ready"`
	Authenticated bool     `json:"authenticated"`
	Account       *Account `json:"account,omitempty"`
}
