package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/apexdx/docsgate/internal/auth"
	"github.com/apexdx/docsgate/internal/cache"
	"github.com/apexdx/docsgate/internal/config"
)

type HealthHandler struct {
	cfg       config.Config
	cache     cache.Cache
	manager   *auth.Manager
	logger    *slog.Logger
	startTime time.Time
}

func NewHealthHandler(cfg config.Config, cache cache.Cache, manager *auth.Manager, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:       cfg,
		cache:     cache,
		manager:   manager,
		logger:    logger,
		startTime: time.Now(),
	}
}

type HealthResponse struct {
	Status   string         `json:"status"`
	Uptime   string         `json:"uptime"`
	Cache    CacheHealth    `json:"cache"`
	Docs     DocsHealth     `json:"docs"`
	Provider ProviderHealth `json:"provider"`
}

type CacheHealth struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type DocsHealth struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

type ProviderHealth struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: "healthy",
		Uptime: time.Since(h.startTime).String(),
	}

	response.Cache.Type = h.cfg.Cache.Type
	if err := h.cache.Set(ctx, "health:check", []byte("ok"), 1*time.Minute); err != nil {
		response.Cache.Status = "error: " + err.Error()
		response.Status = "degraded"
	} else {
		response.Cache.Status = "connected"
		h.cache.Delete(ctx, "health:check")
	}

	response.Docs.URL = h.cfg.Docs.URL
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.Docs.URL, nil)
	docsResp, err := http.DefaultClient.Do(req)
	if err != nil {
		response.Docs.Status = "unreachable"
		response.Status = "degraded"
	} else {
		docsResp.Body.Close()
		response.Docs.Status = "reachable"
	}

	response.Provider.Name = h.cfg.Provider.Name
	response.Provider.Type = h.cfg.Provider.Type
	switch {
	case !h.manager.Ready():
		response.Provider.Status = "initializing"
	case h.manager.InitError() != nil:
		response.Provider.Status = "error: " + h.manager.InitError().Error()
		response.Status = "degraded"
	default:
		response.Provider.Status = "ready"
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}
