package proxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/apexdx/docsgate/internal/config"
	"github.com/apexdx/docsgate/internal/middleware"
)

// ReverseProxy forwards documentation traffic to the external renderer.
// Requests pass through whether or not a session exists; when one does,
// identity headers let the renderer personalize the page.
type ReverseProxy struct {
	proxy  *httputil.ReverseProxy
	cfg    config.DocsConfig
	logger *slog.Logger
}

func NewReverseProxy(cfg config.DocsConfig, logger *slog.Logger) (*ReverseProxy, error) {
	docsURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(docsURL)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = docsURL.Host
		req.URL.Scheme = docsURL.Scheme
		req.URL.Host = docsURL.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error",
			"error", err,
			"docs_backend", docsURL.String(),
			"path", r.URL.Path,
		)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return &ReverseProxy{
		proxy:  proxy,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (rp *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if session, ok := middleware.GetSession(r.Context()); ok {
		InjectIdentityHeaders(r, session)
	} else {
		StripIdentityHeaders(r)
	}

	if rp.cfg.PreserveHost {
		r.Host = r.Header.Get("X-Forwarded-Host")
		if r.Host == "" {
			r.Host = r.Header.Get("Host")
		}
	}

	rp.logger.Debug("proxying request", "path", r.URL.Path)

	rp.proxy.ServeHTTP(w, r)
}
