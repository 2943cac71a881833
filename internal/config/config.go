package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StoreFS       = "fs"
	StoreKeychain = "keychain"
	StoreEnv      = "env"
)

// Config is the runtime configuration of helix-auth.
type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	Port     string `yaml:"port"`

	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AppToken     string `yaml:"app_token"`
	UserToken    string `yaml:"user_token"`
	RefreshToken string `yaml:"refresh_token"`

	RefreshAppToken  bool   `yaml:"refresh_app_token"`
	RefreshUserToken bool   `yaml:"refresh_user_token"`
	TokenURL         string `yaml:"token_url"`
	// AppRenewInterval overrides the application renewal period, e.g. "720h".
	AppRenewInterval string `yaml:"app_renew_interval"`

	AdminAPIKey string `yaml:"admin_api_key"`

	Store           string `yaml:"store"`
	FSCredsPath     string `yaml:"fs_creds_path"`
	KeychainService string `yaml:"keychain_service"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Env:      "development",
		LogLevel: "info",
		Port:     "9880",
		Store:    StoreFS,
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config %s: %w", filepath.Base(path), err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from HELIX_* and the generic PORT/ENV/LOG_LEVEL variables.
func (c *Config) ApplyEnv() {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("ENV", &c.Env)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("PORT", &c.Port)
	setString("HELIX_CLIENT_ID", &c.ClientID)
	setString("HELIX_CLIENT_SECRET", &c.ClientSecret)
	setString("HELIX_APP_TOKEN", &c.AppToken)
	setString("HELIX_USER_TOKEN", &c.UserToken)
	setString("HELIX_REFRESH_TOKEN", &c.RefreshToken)
	setBool("HELIX_REFRESH_APP_TOKEN", &c.RefreshAppToken)
	setBool("HELIX_REFRESH_USER_TOKEN", &c.RefreshUserToken)
	setString("HELIX_TOKEN_URL", &c.TokenURL)
	setString("HELIX_APP_RENEW_INTERVAL", &c.AppRenewInterval)
	setString("HELIX_ADMIN_API_KEY", &c.AdminAPIKey)
	setString("HELIX_STORE", &c.Store)
	setString("HELIX_FS_CREDS_PATH", &c.FSCredsPath)
}

// Validate checks the fields that cannot be defaulted. Client ID rules are
// enforced by the credential manager itself.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreFS, StoreKeychain, StoreEnv:
	default:
		return fmt.Errorf("unknown credential store %q (want fs, keychain or env)", c.Store)
	}
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.AppRenewInterval != "" {
		if _, err := c.AppRenewDuration(); err != nil {
			return err
		}
	}
	return nil
}

// IsProduction reports whether logs should be emitted as JSON.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "", "dev", "development":
		return false
	default:
		return true
	}
}
