package handlers

import (
	"log/slog"
	"net/http"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/apexdx/docsgate/pkg/security"
)

// LogoutHandler is the logout surface page. It tears down the server
// session, clears the cookie, and hands the visitor to the provider
// sign-out flow when one exists. A logout failure never breaks the
// page: the visitor always ends up looking signed out.
type LogoutHandler struct {
	cfg     config.Config
	manager *auth.Manager
	logger  *slog.Logger
}

func NewLogoutHandler(cfg config.Config, manager *auth.Manager, logger *slog.Logger) *LogoutHandler {
	return &LogoutHandler{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
	}
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sessionID string
	if cookie, err := security.GetSessionCookie(r, h.cfg.Server.CookieName); err == nil {
		sessionID = cookie.Value
	}

	providerURL := h.manager.Logout(r.Context(), sessionID)

	http.SetCookie(w, security.ClearSessionCookie(h.cfg.Server))

	h.logger.Info("user logged out", "provider_redirect", providerURL != "")

	if providerURL != "" {
		http.Redirect(w, r, providerURL, http.StatusFound)
		return
	}

	http.Redirect(w, r, h.cfg.Docs.DefaultPath, http.StatusFound)
}
