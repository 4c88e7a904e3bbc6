package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.BroadcastDriver != BroadcastRedis {
		t.Errorf("expected redis broadcast driver, got %s", cfg.BroadcastDriver)
	}
	if cfg.JWT.TTL != 24*time.Hour {
		t.Errorf("expected 24h token ttl, got %v", cfg.JWT.TTL)
	}
	if cfg.Database.ConnMaxLifetime != time.Hour {
		t.Errorf("expected 60m conn lifetime, got %v", cfg.Database.ConnMaxLifetime)
	}
	if cfg.PackageSweepEvery != 10*time.Minute {
		t.Errorf("expected 10m sweep interval, got %v", cfg.PackageSweepEvery)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("BROADCAST_DRIVER", "AMQP")
	t.Setenv("FARE_PER_KM", "2.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.BroadcastDriver != BroadcastAMQP {
		t.Errorf("expected amqp driver, got %s", cfg.BroadcastDriver)
	}
	if cfg.Fare.PerKm != 2.5 {
		t.Errorf("expected per-km fare 2.5, got %v", cfg.Fare.PerKm)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := &Config{
		JWT:             JWTConfig{Secret: "x"},
		BroadcastDriver: "kafka",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown broadcast driver")
	}
}
