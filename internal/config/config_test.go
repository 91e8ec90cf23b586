package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func baseEnv() mapEnv {
	return mapEnv{
		"RELAY_DSN":                "postgres://u:p@localhost/relay",
		"RELAY_KEY_DIR":            "/etc/faxrelay/keys",
		"RELAY_ADMIN_KEY":          "k",
		"RELAY_UPSTREAM_TOKEN_URL": "https://upstream.example/oauth/token",
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(baseEnv())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Addr != ":8443" {
		t.Fatalf("expected default addr :8443, got %q", cfg.Addr)
	}
	if cfg.TokenTTL != time.Hour {
		t.Fatalf("expected default ttl 1h, got %v", cfg.TokenTTL)
	}
	if cfg.UpstreamGrantType != "password" {
		t.Fatalf("expected default grant type password, got %q", cfg.UpstreamGrantType)
	}
}

func TestLoadConfigFromEnv_MissingRequired(t *testing.T) {
	for _, key := range []string{"RELAY_DSN", "RELAY_KEY_DIR", "RELAY_ADMIN_KEY", "RELAY_UPSTREAM_TOKEN_URL"} {
		env := baseEnv()
		delete(env, key)
		if _, err := LoadConfigFromEnv(env); err == nil {
			t.Fatalf("expected error when %s is missing", key)
		}
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	env := baseEnv()
	env["RELAY_ADDR"] = ":9000"
	env["RELAY_TOKEN_TTL_SECONDS"] = "1800"
	env["RELAY_ACTIVE_KID"] = "2026-01"

	cfg, err := LoadConfigFromEnv(env)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("expected addr :9000, got %q", cfg.Addr)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("expected ttl 30m, got %v", cfg.TokenTTL)
	}
	if cfg.ActiveKID != "2026-01" {
		t.Fatalf("expected active kid 2026-01, got %q", cfg.ActiveKID)
	}
}

func TestLoadConfigFromEnv_BadDuration(t *testing.T) {
	env := baseEnv()
	env["RELAY_LEEWAY_SECONDS"] = "soon"
	if _, err := LoadConfigFromEnv(env); err == nil {
		t.Fatalf("expected error")
	}
}
