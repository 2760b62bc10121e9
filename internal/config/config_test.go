package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ROLE", "")
	t.Setenv("HOST_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:3000" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Store.CredentialBackend != "sqlite" {
		t.Errorf("CredentialBackend = %q, want sqlite", cfg.Store.CredentialBackend)
	}
	if cfg.Location.DistanceFilterMeters != 10 {
		t.Errorf("DistanceFilterMeters = %v, want 10", cfg.Location.DistanceFilterMeters)
	}
	if cfg.Auth.DefaultTokenTTL() != time.Hour {
		t.Errorf("DefaultTokenTTL = %v, want 1h", cfg.Auth.DefaultTokenTTL())
	}
	if cfg.Location.HasFixedPosition() {
		t.Error("HasFixedPosition should be false without coordinates")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ROLE", "Vendor")
	t.Setenv("HOST_URL", "https://api.example.com/")
	t.Setenv("LOCATION_FIXED_LATITUDE", "28.61")
	t.Setenv("LOCATION_FIXED_LONGITUDE", "77.20")
	t.Setenv("BRIDGE_PORT", "9000")
	t.Setenv("SOCKET_MAX_RECONNECT_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Role != "vendor" {
		t.Errorf("Role = %q, want vendor", cfg.App.Role)
	}
	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", cfg.API.BaseURL)
	}
	if !cfg.Location.HasFixedPosition() {
		t.Error("HasFixedPosition should be true")
	}
	if cfg.Bridge.Addr() != "127.0.0.1:9000" {
		t.Errorf("Bridge.Addr = %q", cfg.Bridge.Addr())
	}
	if cfg.Socket.MaxReconnectAttempts != 5 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.Socket.MaxReconnectAttempts)
	}
}

func TestLoad_InvalidRole(t *testing.T) {
	t.Setenv("APP_ROLE", "admin")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject unknown APP_ROLE")
	}
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("APP_ROLE", "")
	t.Setenv("REDIS_DB", "x")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject non-numeric REDIS_DB")
	}
}
