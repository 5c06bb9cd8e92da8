package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
server:
  base_url: https://docs.example.com
docs:
  url: http://renderer:3000
provider:
  type: oidc
  oidc:
    authority: https://login.example.com/tenant
    client_id: docs-portal
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "docsgate-session", cfg.Server.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.Provider.OIDC.Scopes)
	assert.Equal(t, "https://docs.example.com", cfg.Provider.OIDC.PostLogoutURL)
	assert.Equal(t, "/", cfg.Docs.DefaultPath)
	assert.False(t, cfg.Enforced(), "enforcement defaults off")

	require.NoError(t, cfg.Validate())
}

func TestLoad_SecretsFromEnv(t *testing.T) {
	t.Setenv("OIDC_CLIENT_SECRET", "from-env")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Provider.OIDC.ClientSecret)
}

func TestLoad_EnforcementFlag(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
access:
  enforce: true
`))
	require.NoError(t, err)
	assert.True(t, cfg.Enforced())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base_url", func(c *Config) { c.Server.BaseURL = "" }},
		{"malformed authority", func(c *Config) { c.Provider.OIDC.Authority = "::bad::" }},
		{"missing client_id", func(c *Config) { c.Provider.OIDC.ClientID = "" }},
		{"missing openid scope", func(c *Config) { c.Provider.OIDC.Scopes = []string{"profile"} }},
		{"bad provider type", func(c *Config) { c.Provider.Type = "ldap" }},
		{"bad cache type", func(c *Config) { c.Cache.Type = "disk" }},
		{"redis without config", func(c *Config) { c.Cache.Type = "redis"; c.Cache.Redis = nil }},
		{"missing docs url", func(c *Config) { c.Docs.URL = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_DevProvider(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  base_url: http://localhost:8080
docs:
  url: http://localhost:3000
provider:
  type: dev
  dev:
    subject: dev-user
    email: dev@example.com
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "dev", cfg.Provider.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
