package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SESSION_STORE", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("TRIAGE_PROVIDER", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.SessionStore != "memory" {
		t.Fatalf("expected memory session store by default, got %s", cfg.SessionStore)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("expected default session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.RedirectLimit != 10 {
		t.Fatalf("expected default redirect limit, got %d", cfg.RedirectLimit)
	}
	if cfg.TriageProvider != "off" {
		t.Fatalf("expected triage off by default, got %s", cfg.TriageProvider)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("SESSION_STORE", "Redis")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("MIN_SYMPTOM_LENGTH", "20")
	t.Setenv("TRIAGE_PROVIDER", "Bedrock")
	t.Setenv("SMS_MAX_RETRIES", "5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.SessionStore != "redis" {
		t.Fatalf("expected normalized session store, got %s", cfg.SessionStore)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Fatalf("expected TTL override, got %s", cfg.SessionTTL)
	}
	if cfg.MinSymptomLength != 20 {
		t.Fatalf("expected min symptom length override, got %d", cfg.MinSymptomLength)
	}
	if cfg.TriageProvider != "bedrock" {
		t.Fatalf("expected normalized triage provider, got %s", cfg.TriageProvider)
	}
	if cfg.SMSMaxRetries != 5 {
		t.Fatalf("expected sms retry override, got %d", cfg.SMSMaxRetries)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	cfg := Load()
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("expected fallback TTL on bad value, got %s", cfg.SessionTTL)
	}
}
