// Package config loads and watches the texmirror configuration.
//
// Configuration comes from three layers, later layers winning:
// built-in defaults, the TOML config file, and TEXMIRROR_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid indicates a configuration file that parsed but fails
// validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full texmirror configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Rewrite   RewriteConfig   `toml:"rewrite"`
	Animation AnimationConfig `toml:"animation"`
	Storage   StorageConfig   `toml:"storage"`
	Preview   PreviewConfig   `toml:"preview"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig addresses the compile and rewrite services.
type ServerConfig struct {
	CompileURL     string `toml:"compile_url"`
	RewriteURL     string `toml:"rewrite_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// RewriteConfig selects how rewrite requests are served.
type RewriteConfig struct {
	// Provider is one of "server", "anthropic", "openai".
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	// APIKeyEnv names the environment variable holding the provider
	// API key. The key itself never lives in the config file.
	APIKeyEnv string `toml:"api_key_env"`
	// HookScript is an optional Lua script post-processing rewrite
	// replacement text before it is animated in.
	HookScript string `toml:"hook_script"`
}

// AnimationConfig tunes the edit animator.
type AnimationConfig struct {
	Steps       int `toml:"steps"`
	StepDelayMS int `toml:"step_delay_ms"`
}

// StorageConfig locates the local document store.
type StorageConfig struct {
	Path string `toml:"path"`
	Slot string `toml:"slot"`
}

// PreviewConfig tunes the rendered-page view.
type PreviewConfig struct {
	Scale float64 `toml:"scale"`
}

// LogConfig tunes logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			CompileURL:     "http://localhost:8000/compile",
			RewriteURL:     "http://localhost:8000/chat",
			TimeoutSeconds: 60,
		},
		Rewrite: RewriteConfig{
			Provider:  "server",
			Model:     "",
			APIKeyEnv: "",
		},
		Animation: AnimationConfig{
			Steps:       12,
			StepDelayMS: 24,
		},
		Storage: StorageConfig{
			Path: defaultStorePath(),
			Slot: "document",
		},
		Preview: PreviewConfig{Scale: 1.5},
		Log:     LogConfig{Level: "info"},
	}
}

// defaultStorePath returns the default SQLite path under the user's
// data directory.
func defaultStorePath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "texmirror.db"
	}
	return filepath.Join(base, "texmirror", "texmirror.db")
}

// Load reads the config file at path, applies environment overrides,
// and validates. An empty path or a missing file yields defaults plus
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Missing config files are fine; defaults apply.
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays TEXMIRROR_* environment variables.
// Empty string values are treated as valid values, not as unset.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("TEXMIRROR_COMPILE_URL"); ok {
		cfg.Server.CompileURL = v
	}
	if v, ok := os.LookupEnv("TEXMIRROR_REWRITE_URL"); ok {
		cfg.Server.RewriteURL = v
	}
	if v, ok := os.LookupEnv("TEXMIRROR_TIMEOUT_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.TimeoutSeconds = n
		}
	}
	if v, ok := os.LookupEnv("TEXMIRROR_PROVIDER"); ok {
		cfg.Rewrite.Provider = v
	}
	if v, ok := os.LookupEnv("TEXMIRROR_MODEL"); ok {
		cfg.Rewrite.Model = v
	}
	if v, ok := os.LookupEnv("TEXMIRROR_API_KEY_ENV"); ok {
		cfg.Rewrite.APIKeyEnv = v
	}
	if v, ok := os.LookupEnv("TEXMIRROR_STORE_PATH"); ok {
		cfg.Storage.Path = v
	}
	if v, ok := os.LookupEnv("TEXMIRROR_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Rewrite.Provider {
	case "server", "anthropic", "openai":
	default:
		return fmt.Errorf("%w: unknown rewrite provider %q", ErrInvalid, c.Rewrite.Provider)
	}
	if c.Animation.Steps < 1 {
		return fmt.Errorf("%w: animation steps must be >= 1", ErrInvalid)
	}
	if c.Animation.StepDelayMS < 0 {
		return fmt.Errorf("%w: animation step delay must be >= 0", ErrInvalid)
	}
	if c.Preview.Scale <= 0 {
		return fmt.Errorf("%w: preview scale must be > 0", ErrInvalid)
	}
	if c.Server.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: server timeout must be >= 1s", ErrInvalid)
	}
	return nil
}
