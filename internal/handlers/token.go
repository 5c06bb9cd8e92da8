package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/apexdx/docsgate/pkg/security"
)

// TokenHandler serves access tokens to the docs site's embedded API
// console. With no active account it falls back to the login flow; an
// interaction-required refresh failure escalates the same way. Either
// case yields a redirect instead of a token, and the caller re-invokes
// after the round trip.
type TokenHandler struct {
	cfg     config.Config
	manager *auth.Manager
	logger  *slog.Logger
}

func NewTokenHandler(cfg config.Config, manager *auth.Manager, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
	}
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

type tokenErrorResponse struct {
	Error    string `json:"error"`
	LoginURL string `json:"login_url"`
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Ready() {
		http.Error(w, "Authentication unavailable", http.StatusServiceUnavailable)
		return
	}

	var sessionID string
	if cookie, err := security.GetSessionCookie(r, h.cfg.Server.CookieName); err == nil {
		sessionID = cookie.Value
	}

	token, err := h.manager.AcquireToken(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNoSession):
			h.redirectToLogin(w, r, "login_required")
		case auth.IsInteractionRequired(err):
			h.logger.Info("silent acquisition needs interaction", "error", err)
			h.redirectToLogin(w, r, "interaction_required")
		default:
			h.logger.Error("token acquisition failed", "error", err)
			writeJSON(w, http.StatusBadGateway, tokenErrorResponse{Error: "provider_error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry.Unix(),
	})
}

// redirectToLogin issues exactly one login redirect: a full navigation
// for browser requests, a 401 with the login URL for script callers.
func (h *TokenHandler) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	returnTo := auth.SafeReturnPath(r.URL.Query().Get("return_to"), h.cfg.Docs.DefaultPath)

	q := url.Values{}
	q.Set("return_to", returnTo)
	loginURL := "/login?" + q.Encode()

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, loginURL, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusUnauthorized, tokenErrorResponse{
		Error:    reason,
		LoginURL: loginURL,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
