package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected path %q", resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.MessageTTL != 5*time.Second || cfg.FadeGrace != 500*time.Millisecond {
		t.Fatalf("unexpected ttl defaults: %+v", cfg)
	}
	if cfg.PlaneWidth != 5000 || cfg.PlaneHeight != 5000 {
		t.Fatalf("unexpected plane defaults: %+v", cfg)
	}
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "room: lobby\nmessage_ttl: 2s\nplane_width: 3000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CANVAS_FADE_GRACE", "250ms")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Room != "lobby" || cfg.MessageTTL != 2*time.Second || cfg.PlaneWidth != 3000 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.FadeGrace != 250*time.Millisecond {
		t.Fatalf("env override not applied: %v", cfg.FadeGrace)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.PlaneWidth = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero plane width")
	}

	cfg = Default()
	cfg.ServerURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty server url")
	}

	cfg = Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestUpdateFromOverridesNonZero(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Room: "r2", MessageTTL: time.Second})
	if cfg.Room != "r2" || cfg.MessageTTL != time.Second {
		t.Fatalf("override not applied: %+v", cfg)
	}
	if cfg.ServerURL != Default().ServerURL {
		t.Fatalf("zero value should not override: %q", cfg.ServerURL)
	}
}
