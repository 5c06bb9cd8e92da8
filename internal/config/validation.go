package config

import (
	"fmt"
	"net/url"
	"strings"
)

func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.validateDocs(); err != nil {
		return fmt.Errorf("docs config: %w", err)
	}

	if err := c.validateCache(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.validateProvider(); err != nil {
		return fmt.Errorf("provider config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url: %s", c.Server.BaseURL)
	}

	sameSite := strings.ToLower(c.Server.CookieSameSite)
	if sameSite != "lax" && sameSite != "strict" && sameSite != "none" {
		return fmt.Errorf("invalid cookie_same_site: %s (must be lax, strict, or none)", c.Server.CookieSameSite)
	}

	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}

	return nil
}

func (c *Config) validateDocs() error {
	if c.Docs.URL == "" {
		return fmt.Errorf("url is required")
	}

	u, err := url.Parse(c.Docs.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url: %s", c.Docs.URL)
	}

	if !strings.HasPrefix(c.Docs.DefaultPath, "/") {
		return fmt.Errorf("default_path must be a relative path starting with /")
	}

	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("invalid type: %s (must be memory or redis)", c.Cache.Type)
	}

	if c.Cache.Type == "redis" {
		if c.Cache.Redis == nil {
			return fmt.Errorf("redis config is required when type is redis")
		}
		if c.Cache.Redis.Address == "" {
			return fmt.Errorf("redis address is required")
		}
	}

	return nil
}

func (c *Config) validateProvider() error {
	switch c.Provider.Type {
	case "oidc":
		return validateOIDCConfig(c.Provider.OIDC)
	case "dev":
		return validateDevConfig(c.Provider.Dev)
	default:
		return fmt.Errorf("invalid type: %s (must be oidc or dev)", c.Provider.Type)
	}
}

func validateOIDCConfig(cfg *OIDCConfig) error {
	if cfg == nil {
		return fmt.Errorf("oidc config is required")
	}

	if cfg.Authority == "" {
		return fmt.Errorf("authority is required")
	}

	u, err := url.Parse(cfg.Authority)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid authority URL: %s", cfg.Authority)
	}

	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}

	hasOpenID := false
	for _, scope := range cfg.Scopes {
		if scope == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("'openid' scope is required")
	}

	return nil
}

func validateDevConfig(cfg *DevConfig) error {
	if cfg == nil {
		return fmt.Errorf("dev config is required")
	}

	if cfg.Subject == "" {
		return fmt.Errorf("subject is required")
	}

	if cfg.Email == "" {
		return fmt.Errorf("email is required")
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" {
		return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}
