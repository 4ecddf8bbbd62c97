package pyra

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RenderMode is the per-route rendering strategy.
type RenderMode string

const (
	RenderSSR RenderMode = "ssr"
	RenderSSG RenderMode = "ssg"
	RenderSPA RenderMode = "spa"
)

// Config holds application-wide configuration, loaded from pyra.yaml plus
// environment overrides, layering viper over a struct with mapstructure
// tags.
type Config struct {
	// RoutesDir is the routes root the scanner walks.
	RoutesDir string `mapstructure:"routes_dir"`

	// OutDir is the build orchestrator's output directory.
	OutDir string `mapstructure:"out_dir"`

	// PublicDir is copied verbatim into OutDir/client.
	PublicDir string `mapstructure:"public_dir"`

	// Host and Port make up the listen address for dev/prod servers.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// EnvPrefix is stripped from environment variables exposed as ctx.env.
	// Defaults to "PYRA_".
	EnvPrefix string `mapstructure:"env_prefix"`

	// DefaultRenderMode is the global fallback when a route exports neither
	// `render` nor a truthy `prerender`.
	DefaultRenderMode RenderMode `mapstructure:"default_render_mode"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Adapter is a UI adapter name read from config. Nothing in the core
	// reads it: the actual Adapter value is wired by the caller, not
	// resolved from config (the core never imports a UI framework), and
	// the manifest's adapter name comes from that Adapter's Name().
	Adapter string `mapstructure:"adapter"`
}

// DefaultConfig returns Pyra's baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		RoutesDir:         "app",
		OutDir:            "dist",
		PublicDir:         "public",
		Host:              "0.0.0.0",
		Port:              3000,
		EnvPrefix:         "PYRA_",
		DefaultRenderMode: RenderSSR,
		ShutdownTimeout:   10 * time.Second,
	}
}

// ListenAddress returns the host:port pair the HTTP server should bind to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads pyra.yaml (if present) from dir and overlays PYRA_*
// environment variables via viper.
func LoadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("pyra")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("PYRA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("routes_dir", cfg.RoutesDir)
	v.SetDefault("out_dir", cfg.OutDir)
	v.SetDefault("public_dir", cfg.PublicDir)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("env_prefix", cfg.EnvPrefix)
	v.SetDefault("default_render_mode", string(cfg.DefaultRenderMode))
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout.String())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load pyra.yaml: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal pyra config: %w", err)
	}

	return cfg, nil
}

// Option configures server/orchestrator construction via the functional-
// options pattern.
type Option func(*Config)

// WithPort overrides the listen port.
func WithPort(port int) Option {
	return func(c *Config) { c.Port = port }
}

// WithHost overrides the listen host.
func WithHost(host string) Option {
	return func(c *Config) { c.Host = host }
}

// WithRoutesDir overrides the routes root.
func WithRoutesDir(dir string) Option {
	return func(c *Config) { c.RoutesDir = dir }
}

// WithOutDir overrides the build output directory.
func WithOutDir(dir string) Option {
	return func(c *Config) { c.OutDir = dir }
}

// WithDefaultRenderMode overrides the global render mode fallback.
func WithDefaultRenderMode(mode RenderMode) Option {
	return func(c *Config) { c.DefaultRenderMode = mode }
}
