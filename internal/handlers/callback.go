package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/apexdx/docsgate/pkg/security"
)

// CallbackHandler is the auth-return page: the identity provider sends
// the visitor here after sign-in, and the pending return path is
// consumed to land them back where they started.
type CallbackHandler struct {
	cfg     config.Config
	manager *auth.Manager
	logger  *slog.Logger
}

func NewCallbackHandler(cfg config.Config, manager *auth.Manager, logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
	}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Ready() {
		http.Error(w, "Authentication unavailable", http.StatusServiceUnavailable)
		return
	}

	// Provider-reported failures (visitor cancelled, consent denied)
	// land the visitor back on the site, never on an error page.
	if errCode := r.URL.Query().Get("error"); errCode != "" {
		h.logger.Warn("provider returned error",
			"error", errCode,
			"description", r.URL.Query().Get("error_description"),
		)
		h.clearStateAndRedirect(w, r, h.cfg.Docs.DefaultPath)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	stateCookie, err := r.Cookie(security.StateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		h.logger.Warn("state mismatch on auth return")
		h.clearStateAndRedirect(w, r, h.cfg.Docs.DefaultPath)
		return
	}

	session, returnTo, err := h.manager.CompleteLogin(r.Context(), code, state)
	if err != nil {
		h.logger.Error("failed to complete login", "error", err)
		h.clearStateAndRedirect(w, r, h.cfg.Docs.DefaultPath)
		return
	}

	ttl := time.Until(session.ExpiresAt)
	http.SetCookie(w, security.CreateSessionCookie(h.cfg.Server, session.ID, ttl))
	http.SetCookie(w, security.ClearStateCookie(h.cfg.Server))

	h.logger.Info("authentication successful",
		"session_id", session.ID,
		"subject", session.Account.Subject,
		"return_to", returnTo,
	)

	http.Redirect(w, r, returnTo, http.StatusFound)
}

func (h *CallbackHandler) clearStateAndRedirect(w http.ResponseWriter, r *http.Request, target string) {
	http.SetCookie(w, security.ClearStateCookie(h.cfg.Server))
	http.Redirect(w, r, target, http.StatusFound)
}
