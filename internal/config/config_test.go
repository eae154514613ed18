// README: Config loading tests: defaults, env overrides, validation.
package config

import (
	"strings"
	"testing"
)

// clearEnv blanks every config knob so ambient shell state cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SHARETRAY_HTTP_ADDR", "SHARETRAY_CORS_ORIGINS", "SHARETRAY_RATE_LIMIT_RPM",
		"SHARETRAY_STORE", "SHARETRAY_DB_DSN", "SHARETRAY_REDIS_ADDR",
		"SHARETRAY_JWT_SECRET", "SHARETRAY_TOKEN_TTL_MINUTES",
		"SHARETRAY_MATCH_TICK_SECONDS", "SHARETRAY_MATCH_RADIUS_KM",
		"SHARETRAY_EXPIRY_TICK_SECONDS", "SHARETRAY_MAPS_API_KEY",
		"SHARETRAY_ROLES_FILE", "SHARETRAY_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.HTTP.Addr)
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "*" {
		t.Errorf("expected wildcard CORS, got %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.HTTP.RateLimitRPM != 120 {
		t.Errorf("expected 120 rpm, got %d", cfg.HTTP.RateLimitRPM)
	}
	if cfg.Store.Backend != StoreBackendPostgres {
		t.Errorf("expected postgres backend, got %s", cfg.Store.Backend)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("expected Redis disabled by default, got %q", cfg.Redis.Addr)
	}
	if cfg.Matching.RadiusKm != 5.0 {
		t.Errorf("expected 5 km default radius, got %.1f", cfg.Matching.RadiusKm)
	}
	if cfg.Matching.TickSeconds != 0 {
		t.Errorf("expected matching scheduler off by default, got %d", cfg.Matching.TickSeconds)
	}
	if cfg.Expiry.TickSeconds != 60 {
		t.Errorf("expected 60s expiry tick, got %d", cfg.Expiry.TickSeconds)
	}
	if cfg.Auth.TokenTTLMinutes != 60 {
		t.Errorf("expected 60 minute tokens, got %d", cfg.Auth.TokenTTLMinutes)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHARETRAY_HTTP_ADDR", ":9999")
	t.Setenv("SHARETRAY_STORE", "memory")
	t.Setenv("SHARETRAY_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SHARETRAY_MATCH_RADIUS_KM", "12.5")
	t.Setenv("SHARETRAY_MATCH_TICK_SECONDS", "30")
	t.Setenv("SHARETRAY_JWT_SECRET", "prod-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("expected :9999, got %s", cfg.HTTP.Addr)
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.Store.Backend)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.example" {
		t.Errorf("expected trimmed origin list, got %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Matching.RadiusKm != 12.5 {
		t.Errorf("expected 12.5 km, got %.1f", cfg.Matching.RadiusKm)
	}
	if cfg.Matching.TickSeconds != 30 {
		t.Errorf("expected 30s tick, got %d", cfg.Matching.TickSeconds)
	}
	if cfg.Auth.JWTSecret != "prod-secret" {
		t.Errorf("expected override secret, got %q", cfg.Auth.JWTSecret)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg := base
	cfg.Store.Backend = "etcd"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "SHARETRAY_STORE") {
		t.Errorf("expected backend validation error, got %v", err)
	}

	cfg = base
	cfg.Auth.JWTSecret = "   "
	if err := cfg.Validate(); err == nil {
		t.Error("expected blank secret to fail validation")
	}

	cfg = base
	cfg.Auth.TokenTTLMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected zero token TTL to fail validation")
	}

	cfg = base
	cfg.Matching.RadiusKm = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected zero radius to fail validation")
	}

	cfg = base
	cfg.Store.Backend = StoreBackendPostgres
	cfg.DB.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing DSN to fail validation")
	}
}
