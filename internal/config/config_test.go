package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Rewrite.Provider != "server" {
		t.Errorf("default provider = %q, want server", cfg.Rewrite.Provider)
	}
	if cfg.Animation.Steps != 12 || cfg.Animation.StepDelayMS != 24 {
		t.Errorf("default animation = %+v", cfg.Animation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.CompileURL != Default().Server.CompileURL {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texmirror.toml")
	const data = `
[server]
compile_url = "http://example.test/compile"
timeout_seconds = 10

[rewrite]
provider = "anthropic"
model = "claude-sonnet-4-20250514"
api_key_env = "ANTHROPIC_API_KEY"

[animation]
steps = 8
step_delay_ms = 10
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.CompileURL != "http://example.test/compile" {
		t.Errorf("compile_url = %q", cfg.Server.CompileURL)
	}
	if cfg.Rewrite.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Rewrite.Provider)
	}
	if cfg.Animation.Steps != 8 {
		t.Errorf("steps = %d", cfg.Animation.Steps)
	}
	// Unset sections keep defaults.
	if cfg.Preview.Scale != 1.5 {
		t.Errorf("scale = %v, want default 1.5", cfg.Preview.Scale)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TEXMIRROR_COMPILE_URL", "http://env.test/compile")
	t.Setenv("TEXMIRROR_LOG_LEVEL", "debug")
	t.Setenv("TEXMIRROR_TIMEOUT_SECONDS", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.CompileURL != "http://env.test/compile" {
		t.Errorf("compile_url = %q", cfg.Server.CompileURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Server.TimeoutSeconds != 5 {
		t.Errorf("timeout = %d", cfg.Server.TimeoutSeconds)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.Rewrite.Provider = "carrier-pigeon" }},
		{"zero steps", func(c *Config) { c.Animation.Steps = 0 }},
		{"negative delay", func(c *Config) { c.Animation.StepDelayMS = -1 }},
		{"zero scale", func(c *Config) { c.Preview.Scale = 0 }},
		{"zero timeout", func(c *Config) { c.Server.TimeoutSeconds = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "texmirror.toml")
	if err := os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan Config, 1)
	w := NewWatcher(path, func(cfg Config, err error) {
		if err != nil {
			t.Errorf("reload error: %v", err)
			return
		}
		select {
		case reloaded <- cfg:
		default:
		}
	})
	w.debounce = 20 * time.Millisecond

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Log.Level != "debug" {
			t.Errorf("reloaded level = %q, want debug", cfg.Log.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
