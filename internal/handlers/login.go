package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/apexdx/docsgate/pkg/security"
)

// LoginHandler is the login surface page. An unauthenticated visitor is
// sent to the identity provider with their current page preserved as
// the return path; an already-authenticated visitor is sent straight to
// that return path.
type LoginHandler struct {
	cfg     config.Config
	manager *auth.Manager
	logger  *slog.Logger
}

func NewLoginHandler(cfg config.Config, manager *auth.Manager, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
	}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Ready() {
		http.Error(w, "Authentication unavailable", http.StatusServiceUnavailable)
		return
	}

	returnTo := h.returnPath(r)

	if cookie, err := security.GetSessionCookie(r, h.cfg.Server.CookieName); err == nil {
		if _, err := h.manager.Session(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, returnTo, http.StatusFound)
			return
		}
	}

	redirect, err := h.manager.Login(r.Context(), returnTo)
	if err != nil {
		if errors.Is(err, auth.ErrNotReady) {
			h.logger.Warn("login refused, identity provider unavailable")
			http.Error(w, "Authentication unavailable", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("failed to initiate login", "error", err)
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, security.CreateStateCookie(h.cfg.Server, redirect.Pending.State, h.cfg.Server.SessionTTL))

	h.logger.Info("login initiated", "return_to", redirect.Pending.ReturnTo)

	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// returnPath resolves the visitor's pre-authentication location: the
// explicit return_to query parameter, else the referring page, else
// the configured default.
func (h *LoginHandler) returnPath(r *http.Request) string {
	if returnTo := r.URL.Query().Get("return_to"); returnTo != "" {
		return auth.SafeReturnPath(returnTo, h.cfg.Docs.DefaultPath)
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		if u, err := url.Parse(referer); err == nil && u.Path != "" {
			return auth.SafeReturnPath(u.Path, h.cfg.Docs.DefaultPath)
		}
	}

	return h.cfg.Docs.DefaultPath
}
