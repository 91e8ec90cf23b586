// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr    string
	DSN     string
	GinMode string

	TLSCertFile string
	TLSKeyFile  string

	KeyDir    string
	ActiveKID string

	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	NotBeforeSkew time.Duration
	Leeway        time.Duration

	AdminKey string

	RefreshInterval   time.Duration
	UpstreamTokenURL  string
	UpstreamGrantType string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Addr:              ":8443",
		GinMode:           "release",
		ActiveKID:         "primary",
		Issuer:            "faxrelay",
		Audience:          "faxrelay.api",
		TokenTTL:          time.Hour,
		NotBeforeSkew:     30 * time.Second,
		Leeway:            60 * time.Second,
		RefreshInterval:   5 * time.Minute,
		UpstreamGrantType: "password",
	}

	if raw := env.Getenv("RELAY_ADDR"); raw != "" {
		cfg.Addr = raw
	}

	cfg.DSN = env.Getenv("RELAY_DSN")
	if cfg.DSN == "" {
		return Config{}, fmt.Errorf("RELAY_DSN is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("RELAY_TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("RELAY_TLS_KEY_FILE")

	cfg.KeyDir = env.Getenv("RELAY_KEY_DIR")
	if cfg.KeyDir == "" {
		return Config{}, fmt.Errorf("RELAY_KEY_DIR is required")
	}
	if raw := env.Getenv("RELAY_ACTIVE_KID"); raw != "" {
		cfg.ActiveKID = raw
	}

	if raw := env.Getenv("RELAY_ISSUER"); raw != "" {
		cfg.Issuer = raw
	}
	if raw := env.Getenv("RELAY_AUDIENCE"); raw != "" {
		cfg.Audience = raw
	}

	var err error
	if cfg.TokenTTL, err = seconds(env, "RELAY_TOKEN_TTL_SECONDS", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.NotBeforeSkew, err = seconds(env, "RELAY_NBF_SKEW_SECONDS", cfg.NotBeforeSkew); err != nil {
		return Config{}, err
	}
	if cfg.Leeway, err = seconds(env, "RELAY_LEEWAY_SECONDS", cfg.Leeway); err != nil {
		return Config{}, err
	}
	if cfg.RefreshInterval, err = seconds(env, "RELAY_REFRESH_INTERVAL_SECONDS", cfg.RefreshInterval); err != nil {
		return Config{}, err
	}

	cfg.AdminKey = env.Getenv("RELAY_ADMIN_KEY")
	if cfg.AdminKey == "" {
		return Config{}, fmt.Errorf("RELAY_ADMIN_KEY is required")
	}

	cfg.UpstreamTokenURL = env.Getenv("RELAY_UPSTREAM_TOKEN_URL")
	if cfg.UpstreamTokenURL == "" {
		return Config{}, fmt.Errorf("RELAY_UPSTREAM_TOKEN_URL is required")
	}
	if raw := env.Getenv("RELAY_UPSTREAM_GRANT_TYPE"); raw != "" {
		cfg.UpstreamGrantType = raw
	}

	return cfg, nil
}

func seconds(env Env, key string, def time.Duration) (time.Duration, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return time.Duration(n) * time.Second, nil
}
