package pyra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_ListenAddress(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ListenAddress(); got != "0.0.0.0:3000" {
		t.Errorf("unexpected listen address %q", got)
	}
}

func TestLoadConfig_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("expected no error for a missing pyra.yaml, got %v", err)
	}
	if cfg.RoutesDir != "app" || cfg.Port != 3000 {
		t.Errorf("expected defaults to survive, got %+v", cfg)
	}
}

func TestLoadConfig_ReadsYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := "routes_dir: src/app\nport: 4321\ndefault_render_mode: spa\nshutdown_timeout: 5s\n"
	if err := os.WriteFile(filepath.Join(dir, "pyra.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RoutesDir != "src/app" {
		t.Errorf("expected routes_dir override, got %q", cfg.RoutesDir)
	}
	if cfg.Port != 4321 {
		t.Errorf("expected port override, got %d", cfg.Port)
	}
	if cfg.DefaultRenderMode != RenderSPA {
		t.Errorf("expected spa default render mode, got %s", cfg.DefaultRenderMode)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected 5s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
}

func TestLoadConfig_EnvironmentOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pyra.yaml"), []byte("port: 4321\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PYRA_PORT", "9999")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9999 {
		t.Errorf("expected env var to win over yaml, got %d", cfg.Port)
	}
}

func TestOptions_OverrideDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithPort(8080),
		WithHost("127.0.0.1"),
		WithRoutesDir("routes"),
		WithOutDir("build"),
		WithDefaultRenderMode(RenderSSG),
	} {
		opt(cfg)
	}

	if cfg.Port != 8080 || cfg.Host != "127.0.0.1" || cfg.RoutesDir != "routes" || cfg.OutDir != "build" || cfg.DefaultRenderMode != RenderSSG {
		t.Errorf("options did not apply as expected: %+v", cfg)
	}
}
