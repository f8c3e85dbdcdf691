package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.MaxTurnSteps != 8 {
		t.Errorf("expected default step budget 8, got %d", cfg.MaxTurnSteps)
	}
	if cfg.BookingHorizonDays != 90 {
		t.Errorf("expected default booking horizon 90, got %d", cfg.BookingHorizonDays)
	}
	if cfg.ReasoningTimeout != 30*time.Second {
		t.Errorf("expected default reasoning timeout 30s, got %s", cfg.ReasoningTimeout)
	}
	if cfg.EmailProvider != "stub" {
		t.Errorf("expected default email provider stub, got %s", cfg.EmailProvider)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_TURN_STEPS", "3")
	t.Setenv("STORAGE_TIMEOUT", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.careline.health, https://staging.careline.health")
	t.Setenv("USE_MEMORY_QUEUE", "false")

	cfg := Load()

	if cfg.MaxTurnSteps != 3 {
		t.Errorf("expected step budget 3, got %d", cfg.MaxTurnSteps)
	}
	if cfg.StorageTimeout != 250*time.Millisecond {
		t.Errorf("expected storage timeout 250ms, got %s", cfg.StorageTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.UseMemoryQueue {
		t.Error("expected memory queue disabled")
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_TURN_STEPS", "many")
	t.Setenv("REASONING_TIMEOUT", "soon")

	cfg := Load()

	if cfg.MaxTurnSteps != 8 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.MaxTurnSteps)
	}
	if cfg.ReasoningTimeout != 30*time.Second {
		t.Errorf("invalid duration should fall back to default, got %s", cfg.ReasoningTimeout)
	}
}
