package config

import (
	"testing"
)

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is empty")
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("SITE_URL", "https://tutor.example.com/")
	t.Setenv("OAUTH_SCOPES", "openid, email ,,profile")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("expected development, got %q", cfg.AppEnv)
	}
	if cfg.SiteURL != "https://tutor.example.com" {
		t.Fatalf("expected trimmed site url, got %q", cfg.SiteURL)
	}
	if len(cfg.OAuthScopes) != 3 || cfg.OAuthScopes[1] != "email" {
		t.Fatalf("unexpected scopes: %#v", cfg.OAuthScopes)
	}
	if cfg.Location() == nil {
		t.Fatalf("expected a location")
	}
}

func TestLoadConfigRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("BUSINESS_TIMEZONE", "Mars/Olympus")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected timezone error")
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG_ON", "Yes")
	t.Setenv("FLAG_OFF", "off")
	t.Setenv("FLAG_JUNK", "maybe")

	if !getEnvBool("FLAG_ON", false) {
		t.Fatalf("expected true")
	}
	if getEnvBool("FLAG_OFF", true) {
		t.Fatalf("expected false")
	}
	if !getEnvBool("FLAG_JUNK", true) {
		t.Fatalf("expected fallback")
	}
}
