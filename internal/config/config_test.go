package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/telecare_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %s, want 8000", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Error("default env should be development")
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("pool defaults = %d/%d, want 20/5", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.JoinAuthTimeout() != 3*time.Second {
		t.Errorf("JoinAuthTimeout = %v, want 3s", cfg.JoinAuthTimeout())
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without DATABASE_URL")
	}
}

func TestJoinAuthTimeoutOverride(t *testing.T) {
	cfg := &Config{JoinAuthTimeoutMS: 250}
	if cfg.JoinAuthTimeout() != 250*time.Millisecond {
		t.Fatalf("JoinAuthTimeout = %v, want 250ms", cfg.JoinAuthTimeout())
	}

	cfg.JoinAuthTimeoutMS = -1
	if cfg.JoinAuthTimeout() != 3*time.Second {
		t.Fatalf("JoinAuthTimeout = %v, want 3s fallback", cfg.JoinAuthTimeout())
	}
}

func TestValidateProduction(t *testing.T) {
	cfg := &Config{Env: "production", DatabaseURL: "postgres://x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("production without webhook secret should be rejected")
	}

	cfg.StripeWebhookSecret = "whsec_x"
	if err := cfg.Validate(); err == nil {
		t.Fatal("production without any JWT material should be rejected")
	}

	cfg.JWTSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateMeetAPIKey(t *testing.T) {
	cfg := &Config{Env: "development", MeetAPIURL: "https://calendar.example.com"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("MEET_API_URL without MEET_API_KEY should be rejected")
	}
	cfg.MeetAPIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
