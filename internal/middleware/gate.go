package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/config"
	"github.com/apexdx/docsgate/pkg/security"
)

type contextKey string

const SessionContextKey contextKey = "session"

// Gate is the protected-content gate in front of the documentation
// backend. It always resolves the visitor's session into the request
// context; whether unauthenticated visitors are turned away depends on
// the enforcement flag, which is off by default.
type Gate struct {
	cfg     config.ServerConfig
	manager *auth.Manager
	enforce bool
	logger  *slog.Logger
}

func NewGate(cfg config.ServerConfig, manager *auth.Manager, enforce bool, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:     cfg,
		manager: manager,
		enforce: enforce,
		logger:  logger,
	}
}

func (g *Gate) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.manager.Ready() {
			// Session state must not be acted on before the manager
			// reports ready.
			if g.enforce {
				http.Error(w, "Service initializing", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		session := g.resolveSession(r)
		if session == nil {
			if g.enforce {
				g.logger.Debug("unauthenticated visitor turned away", "path", r.URL.Path)
				http.Redirect(w, r, loginURL(r.URL.Path), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gate) resolveSession(r *http.Request) *auth.Session {
	cookie, err := security.GetSessionCookie(r, g.cfg.CookieName)
	if err != nil {
		return nil
	}

	session, err := g.manager.Session(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}

	return session
}

func loginURL(returnTo string) string {
	q := url.Values{}
	q.Set("return_to", returnTo)
	return "/login?" + q.Encode()
}

// GetSession returns the session the gate attached to the request
// context, if any.
func GetSession(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(SessionContextKey).(*auth.Session)
	return session, ok
}
