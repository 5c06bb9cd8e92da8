package proxy

import (
	"net/http"

	"github.com/apexdx/docsgate/internal/auth"
)

var identityHeaders = []string{
	"X-Auth-Subject",
	"X-Auth-Email",
	"X-Auth-Name",
	"X-Auth-Session-ID",
}

// InjectIdentityHeaders attaches the authenticated account to the
// upstream request so the docs renderer can personalize content.
func InjectIdentityHeaders(req *http.Request, session *auth.Session) {
	req.Header.Set("X-Auth-Subject", session.Account.Subject)
	if session.Account.Email != "" {
		req.Header.Set("X-Auth-Email", session.Account.Email)
	}
	if session.Account.Name != "" {
		req.Header.Set("X-Auth-Name", session.Account.Name)
	}
	req.Header.Set("X-Auth-Session-ID", session.ID)
}

// StripIdentityHeaders removes identity headers from anonymous
// requests so visitors cannot spoof them past the gate.
func StripIdentityHeaders(req *http.Request) {
	for _, header := range identityHeaders {
		req.Header.Del(header)
	}
}
