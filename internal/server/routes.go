package server

import (
	"net/http"

	"github.com/apexdx/docsgate/internal/handlers"
	"github.com/apexdx/docsgate/internal/middleware"
	"github.com/apexdx/docsgate/internal/proxy"
)

func (s *Server) setupRoutes() (http.Handler, error) {
	mux := http.NewServeMux()

	csrfMiddleware := middleware.NewCSRFMiddleware(s.cache, s.logger)
	gate := middleware.NewGate(s.cfg.Server, s.manager, s.cfg.Enforced(), s.logger)

	loginHandler := handlers.NewLoginHandler(s.cfg, s.manager, s.logger)
	callbackHandler := handlers.NewCallbackHandler(s.cfg, s.manager, s.logger)
	logoutHandler := handlers.NewLogoutHandler(s.cfg, s.manager, s.logger)
	statusHandler := handlers.NewStatusHandler(s.cfg, s.manager, csrfMiddleware, s.logger)
	tokenHandler := handlers.NewTokenHandler(s.cfg, s.manager, s.logger)
	healthHandler := handlers.NewHealthHandler(s.cfg, s.cache, s.manager, s.logger)

	reverseProxy, err := proxy.NewReverseProxy(s.cfg.Docs, s.logger)
	if err != nil {
		return nil, err
	}

	mux.Handle("/login", loginHandler)
	mux.Handle("/auth-redirect", callbackHandler)
	mux.Handle("/logout", csrfMiddleware.ValidateCSRF(logoutHandler))
	mux.Handle("/auth/status", statusHandler)
	mux.Handle("/auth/token", tokenHandler)
	mux.Handle("/health", healthHandler)

	// Everything else is documentation content behind the gate.
	mux.Handle("/", gate.Protect(reverseProxy))

	handler := middleware.Recovery(s.logger)(
		middleware.Logging(s.logger)(
			addSecurityHeaders(mux),
		),
	)

	return handler, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
