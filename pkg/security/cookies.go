package security

import (
	"net/http"
	"strings"
	"time"

	"github.com/apexdx/docsgate/internal/config"
)

// StateCookieName holds the pending-login state across the provider
// redirect round trip. One cookie, overwritten on every login start:
// the browser carries at most one pending return path at a time.
const StateCookieName = "docsgate-state"

func CreateSessionCookie(cfg config.ServerConfig, sessionID string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   cfg.CookieSecure,
		HttpOnly: cfg.CookieHTTPOnly,
		SameSite: sameSiteMode(cfg.CookieSameSite),
	}
}

func ClearSessionCookie(cfg config.ServerConfig) *http.Cookie {
	cookie := CreateSessionCookie(cfg, "", 0)
	cookie.MaxAge = -1
	return cookie
}

func CreateStateCookie(cfg config.ServerConfig, state string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func ClearStateCookie(cfg config.ServerConfig) *http.Cookie {
	cookie := CreateStateCookie(cfg, "", 0)
	cookie.MaxAge = -1
	return cookie
}

func GetSessionCookie(req *http.Request, cookieName string) (*http.Cookie, error) {
	return req.Cookie(cookieName)
}

func sameSiteMode(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
