package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.ListenHost)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr())
	assert.True(t, cfg.Loopback())
	assert.Equal(t, "http://localhost:8080", cfg.PublicURL)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 10*time.Minute, cfg.PKCETTL)
	assert.Equal(t, "cognito:groups", cfg.GroupsClaim)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.StorageKey)
	assert.Empty(t, cfg.PKCERedisURL)

	assert.Empty(t, cfg.Provider.Domain)
	assert.Empty(t, cfg.Provider.ClientID)
	assert.Equal(t, "openid email profile", cfg.Provider.Scopes)
	assert.Equal(t, "http://localhost:8080", cfg.Provider.Origin)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STUDYDECK_PROVIDER_DOMAIN", "https://auth.example.com/")
	t.Setenv("STUDYDECK_PROVIDER_CLIENT_ID", "client-1")
	t.Setenv("STUDYDECK_PROVIDER_REDIRECT_URI", "https://app.example.com/auth/callback")
	t.Setenv("STUDYDECK_PROVIDER_GROUPS_CLAIM", "groups")
	t.Setenv("STUDYDECK_API_BASE_URL", "https://api.example.com/")
	t.Setenv("STUDYDECK_SERVER_PORT", "9090")
	t.Setenv("STUDYDECK_SERVER_LISTEN", "0.0.0.0")
	t.Setenv("STUDYDECK_PKCE_TTL", "5m")
	t.Setenv("STUDYDECK_LOG_LEVEL", "DEBUG")
	t.Setenv("STUDYDECK_ALERTS_WEBHOOK_URL", "https://hooks.example.com/alert")
	t.Setenv("STUDYDECK_ALERTS_WEBHOOK_AUTH_HEADER", "Authorization: Bearer x")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example.com", cfg.Provider.Domain)
	assert.Equal(t, "client-1", cfg.Provider.ClientID)
	assert.Equal(t, "https://app.example.com/auth/callback", cfg.Provider.RedirectURI)
	assert.Equal(t, "groups", cfg.GroupsClaim)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr())
	assert.False(t, cfg.Loopback())
	assert.Equal(t, "http://localhost:9090", cfg.PublicURL)
	assert.Equal(t, 5*time.Minute, cfg.PKCETTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://hooks.example.com/alert", cfg.AlertWebhookURL)
	assert.Equal(t, "Authorization: Bearer x", cfg.AlertWebhookAuthHeader)
}

func TestLoadOverridesTakePrecedence(t *testing.T) {
	t.Setenv("STUDYDECK_SERVER_PORT", "9090")
	v := New()
	v.Set(KeyServerPort, 7070)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		host     string
		addr     string
		loopback bool
	}{
		{"127.0.0.1", "127.0.0.1:8080", true},
		{"localhost", "localhost:8080", true},
		{"::1", "[::1]:8080", true},
		{"192.168.1.20", "192.168.1.20:8080", false},
		{"::", "[::]:8080", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			v := New()
			v.Set(KeyServerListen, tt.host)
			cfg, err := Load(v)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.ListenAddr())
			assert.Equal(t, tt.loopback, cfg.Loopback())
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"PortZero", KeyServerPort, 0},
		{"PortTooLarge", KeyServerPort, 70000},
		{"ListenHostname", KeyServerListen, "studydeck.example.com"},
		{"ListenEmpty", KeyServerListen, ""},
		{"PublicURLRelative", KeyPublicURL, "/app"},
		{"APIBaseURLScheme", KeyAPIBaseURL, "ftp://api.example.com"},
		{"TTLZero", KeyPKCETTL, "0s"},
		{"LogLevel", KeyLogLevel, "verbose"},
		{"AlertWebhookURL", KeyAlertWebhookURL, "hooks.example.com/alert"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("STUDYDECK_PROVIDER_CLIENT_ID=from-dotenv\nSTUDYDECK_DATA_DIR=/var/lib/studydeck\n"), 0o600))
	t.Setenv("STUDYDECK_DATA_DIR", "/from/env")
	t.Cleanup(func() { os.Unsetenv("STUDYDECK_PROVIDER_CLIENT_ID") })

	require.NoError(t, LoadDotEnv(path))

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Provider.ClientID)
	assert.Equal(t, "/from/env", cfg.DataDir, "existing variables win over .env")
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
