// Package config loads studydeck settings from flags, environment variables
// (STUDYDECK_ prefix) and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmcleod/studydeck/apiclient"
	"github.com/jmcleod/studydeck/auth"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "STUDYDECK"

// Keys recognized by Load.
const (
	KeyProviderDomain      = "provider.domain"
	KeyProviderClientID    = "provider.client_id"
	KeyProviderRedirectURI = "provider.redirect_uri"
	KeyProviderLogoutURI   = "provider.logout_uri"
	KeyProviderScopes      = "provider.scopes"
	KeyGroupsClaim         = "provider.groups_claim"
	KeyAPIBaseURL          = "api.base_url"
	KeyAPITimeout          = "api.timeout"
	KeyServerPort          = "server.port"
	KeyServerListen        = "server.listen"
	KeyPublicURL           = "server.public_url"
	KeyDataDir             = "data_dir"
	KeyStorageKey          = "storage.key"
	KeyPKCERedisURL        = "pkce.redis_url"
	KeyPKCETTL             = "pkce.ttl"
	KeyLogLevel            = "log.level"
	KeyAlertWebhookURL     = "alerts.webhook_url"
	KeyAlertWebhookAuth    = "alerts.webhook_auth_header"
)

// DefaultListenHost keeps the host reachable from this machine only. The
// host forwards the user's bearer token for any caller, so binding a wider
// address must be a deliberate choice.
const DefaultListenHost = "127.0.0.1"

// Config is the resolved configuration.
type Config struct {
	Provider    auth.ProviderConfig
	GroupsClaim string

	APIBaseURL string
	APITimeout time.Duration

	Port       int
	ListenHost string
	PublicURL  string

	DataDir      string
	StorageKey   string
	PKCERedisURL string
	PKCETTL      time.Duration

	LogLevel string

	AlertWebhookURL        string
	AlertWebhookAuthHeader string
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyProviderScopes, auth.DefaultScopes)
	v.SetDefault(KeyGroupsClaim, auth.DefaultGroupsClaim)
	v.SetDefault(KeyAPIBaseURL, apiclient.DefaultBaseURL)
	v.SetDefault(KeyAPITimeout, 30*time.Second)
	v.SetDefault(KeyServerPort, 8080)
	v.SetDefault(KeyServerListen, DefaultListenHost)
	v.SetDefault(KeyDataDir, "./data")
	v.SetDefault(KeyPKCETTL, 10*time.Minute)
	v.SetDefault(KeyLogLevel, "info")

	return v
}

// LoadDotEnv loads variables from the given files, or ".env" when none are
// given. Missing files are ignored and existing variables are not
// overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from v. Missing provider settings are not an
// error here; they surface when a login or logout is attempted.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		GroupsClaim:  v.GetString(KeyGroupsClaim),
		APIBaseURL:   strings.TrimRight(v.GetString(KeyAPIBaseURL), "/"),
		APITimeout:   v.GetDuration(KeyAPITimeout),
		Port:         v.GetInt(KeyServerPort),
		ListenHost:   strings.TrimSpace(v.GetString(KeyServerListen)),
		PublicURL:    strings.TrimRight(v.GetString(KeyPublicURL), "/"),
		DataDir:      v.GetString(KeyDataDir),
		StorageKey:   v.GetString(KeyStorageKey),
		PKCERedisURL: v.GetString(KeyPKCERedisURL),
		PKCETTL:      v.GetDuration(KeyPKCETTL),
		LogLevel:     strings.ToLower(v.GetString(KeyLogLevel)),

		AlertWebhookURL:        v.GetString(KeyAlertWebhookURL),
		AlertWebhookAuthHeader: v.GetString(KeyAlertWebhookAuth),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid %s: %d", KeyServerPort, cfg.Port)
	}
	if cfg.ListenHost != "localhost" {
		if _, err := netip.ParseAddr(cfg.ListenHost); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %q is not an IP address", KeyServerListen, cfg.ListenHost)
		}
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if err := checkURL(KeyPublicURL, cfg.PublicURL); err != nil {
		return Config{}, err
	}
	if err := checkURL(KeyAPIBaseURL, cfg.APIBaseURL); err != nil {
		return Config{}, err
	}
	if cfg.AlertWebhookURL != "" {
		if err := checkURL(KeyAlertWebhookURL, cfg.AlertWebhookURL); err != nil {
			return Config{}, err
		}
	}
	if cfg.PKCETTL <= 0 {
		return Config{}, fmt.Errorf("invalid %s: must be positive", KeyPKCETTL)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("invalid %s: %q", KeyLogLevel, cfg.LogLevel)
	}

	cfg.Provider = auth.ProviderConfig{
		Domain:      strings.TrimRight(v.GetString(KeyProviderDomain), "/"),
		ClientID:    v.GetString(KeyProviderClientID),
		RedirectURI: v.GetString(KeyProviderRedirectURI),
		LogoutURI:   v.GetString(KeyProviderLogoutURI),
		Scopes:      v.GetString(KeyProviderScopes),
		Origin:      cfg.PublicURL,
	}
	return cfg, nil
}

// ListenAddr is the host:port the server binds.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.Port))
}

// Loopback reports whether the server binds a loopback address only.
func (c Config) Loopback() bool {
	if c.ListenHost == "localhost" {
		return true
	}
	addr, err := netip.ParseAddr(c.ListenHost)
	return err == nil && addr.IsLoopback()
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q is not an absolute http(s) URL", key, raw)
	}
	return nil
}
