package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Docs     DocsConfig     `yaml:"docs"`
	Cache    CacheConfig    `yaml:"cache"`
	Provider ProviderConfig `yaml:"provider"`
	Access   AccessConfig   `yaml:"access"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	BaseURL        string        `yaml:"base_url"`
	CookieName     string        `yaml:"cookie_name"`
	CookieDomain   string        `yaml:"cookie_domain"`
	CookieSecure   bool          `yaml:"cookie_secure"`
	CookieHTTPOnly bool          `yaml:"cookie_http_only"`
	CookieSameSite string        `yaml:"cookie_same_site"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
}

// DocsConfig points at the documentation renderer the gateway sits in
// front of. The renderer itself is an external collaborator; docsgate
// only proxies it and injects identity headers.
type DocsConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	PreserveHost bool          `yaml:"preserve_host"`
	DefaultPath  string        `yaml:"default_path"`
}

type CacheConfig struct {
	Type  string       `yaml:"type"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

type ProviderConfig struct {
	Name string      `yaml:"name"`
	Type string      `yaml:"type"`
	OIDC *OIDCConfig `yaml:"oidc,omitempty"`
	Dev  *DevConfig  `yaml:"dev,omitempty"`
}

type OIDCConfig struct {
	// Authority is the issuer URL; provider metadata is discovered from
	// its well-known endpoint.
	Authority    string   `yaml:"authority"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
	// PostLogoutURL is where the provider sends the visitor after
	// RP-initiated logout. Defaults to the gateway base URL.
	PostLogoutURL string `yaml:"post_logout_url"`
}

// DevConfig drives the local development provider, which short-circuits
// the redirect round trip and signs in a fixed identity.
type DevConfig struct {
	Subject string `yaml:"subject"`
	Email   string `yaml:"email"`
	Name    string `yaml:"name"`
}

// AccessConfig controls the protected-content gate. Enforcement is
// deliberately a flag: with it off, all documentation passes through
// regardless of authentication state.
type AccessConfig struct {
	Enforce *bool `yaml:"enforce"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("failed to set defaults: %w", err)
	}

	if err := cfg.loadSecretsFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load secrets from environment: %w", err)
	}

	return &cfg, nil
}

// Enforced reports whether the protected-content gate is active.
func (c *Config) Enforced() bool {
	return c.Access.Enforce != nil && *c.Access.Enforce
}

func (c *Config) setDefaults() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.CookieName == "" {
		c.Server.CookieName = "docsgate-session"
	}
	if !c.Server.CookieHTTPOnly {
		c.Server.CookieHTTPOnly = true
	}
	if c.Server.CookieSameSite == "" {
		c.Server.CookieSameSite = "lax"
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 24 * time.Hour
	}

	if c.Docs.Timeout == 0 {
		c.Docs.Timeout = 30 * time.Second
	}
	if c.Docs.DefaultPath == "" {
		c.Docs.DefaultPath = "/"
	}

	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.Type == "redis" && c.Cache.Redis != nil {
		if c.Cache.Redis.PoolSize == 0 {
			c.Cache.Redis.PoolSize = 10
		}
		if c.Cache.Redis.MaxRetries == 0 {
			c.Cache.Redis.MaxRetries = 3
		}
	}

	if c.Provider.Type == "" {
		c.Provider.Type = "oidc"
	}
	if c.Provider.Name == "" {
		c.Provider.Name = c.Provider.Type
	}
	if c.Provider.OIDC != nil {
		if len(c.Provider.OIDC.Scopes) == 0 {
			c.Provider.OIDC.Scopes = []string{"openid", "profile", "email"}
		}
		if c.Provider.OIDC.PostLogoutURL == "" {
			c.Provider.OIDC.PostLogoutURL = c.Server.BaseURL
		}
	}

	if c.Access.Enforce == nil {
		enforce := false
		c.Access.Enforce = &enforce
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	return nil
}

func (c *Config) loadSecretsFromEnv() error {
	if c.Provider.OIDC != nil {
		if envClientID := os.Getenv("OIDC_CLIENT_ID"); envClientID != "" {
			c.Provider.OIDC.ClientID = envClientID
		}
		if envClientSecret := os.Getenv("OIDC_CLIENT_SECRET"); envClientSecret != "" {
			c.Provider.OIDC.ClientSecret = envClientSecret
		}
	}

	if c.Cache.Type == "redis" && c.Cache.Redis != nil {
		if envPassword := os.Getenv("REDIS_PASSWORD"); envPassword != "" {
			c.Cache.Redis.Password = envPassword
		}
	}

	return nil
}
