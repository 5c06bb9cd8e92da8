package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/apexdx/docsgate/internal/middleware"
	"github.com/apexdx/docsgate/pkg/security"
)

// StatusHandler backs the navbar action: the docs site's header polls
// it to decide between a Login link and a Logout action. The response
// is a read-only view of the session manager's state.
type StatusHandler struct {
	cfg     config.Config
	manager *auth.Manager
	csrf    *middleware.CSRFMiddleware
	logger  *slog.Logger
}

func NewStatusHandler(cfg config.Config, manager *auth.Manager, csrf *middleware.CSRFMiddleware, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		cfg:     cfg,
		manager: manager,
		csrf:    csrf,
		logger:  logger,
	}
}

type StatusResponse struct {
	Ready         bool          `json:"ready"`
	Authenticated bool          `json:"authenticated"`
	Account       *auth.Account `json:"account,omitempty"`
	CSRFToken     string        `json:"csrf_token,omitempty"`
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var sessionID string
	if cookie, err := security.GetSessionCookie(r, h.cfg.Server.CookieName); err == nil {
		sessionID = cookie.Value
	}

	status := h.manager.Status(r.Context(), sessionID)

	response := StatusResponse{
		Ready:         status.Ready,
		Authenticated: status.Authenticated,
		Account:       status.Account,
	}

	// The navbar's logout action posts back with this token.
	if status.Authenticated {
		token, err := h.csrf.GenerateCSRFToken(r.Context())
		if err != nil {
			h.logger.Error("failed to generate CSRF token", "error", err)
		} else {
			response.CSRFToken = token
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(response)
}
