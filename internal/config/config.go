// Package config loads application settings from defaults, an optional
// sigil-overlay.{yaml,json,toml} file and SIGIL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the typed view of the loaded settings.
type Config struct {
	LogLevel string         `mapstructure:"logLevel"`
	Viewport ViewportConfig `mapstructure:"viewport"`
	Render   RenderConfig   `mapstructure:"render"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Detect   DetectConfig   `mapstructure:"detect"`
}

// ViewportConfig sizes the display surface.
type ViewportConfig struct {
	Width float64 `mapstructure:"width"`
}

// RenderConfig holds the initial render parameters.
type RenderConfig struct {
	SizePercent    float64 `mapstructure:"sizePercent"`
	OpacityPercent float64 `mapstructure:"opacityPercent"`
	Interpolation  string  `mapstructure:"interpolation"`
}

// AssetsConfig selects and configures the sigil store.
type AssetsConfig struct {
	Backend      string        `mapstructure:"backend"`
	DefaultDir   string        `mapstructure:"defaultDir"`
	CustomDir    string        `mapstructure:"customDir"`
	SQLitePath   string        `mapstructure:"sqlitePath"`
	TTL          time.Duration `mapstructure:"ttl"`
	MaxBytes     int64         `mapstructure:"maxBytes"`
	DefaultSigil string        `mapstructure:"defaultSigil"`
}

// DetectConfig points at the cascade models used for eye detection.
type DetectConfig struct {
	FaceCascade string `mapstructure:"faceCascade"`
	EyeCascade  string `mapstructure:"eyeCascade"`
}

// Backend names for AssetsConfig.Backend.
const (
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
)

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")

	viper.SetDefault("viewport.width", 800.0)

	viper.SetDefault("render.sizePercent", 25.0)
	viper.SetDefault("render.opacityPercent", 35.0)
	viper.SetDefault("render.interpolation", "catmullrom")

	viper.SetDefault("assets.backend", BackendDir)
	viper.SetDefault("assets.defaultDir", "./sigils")
	viper.SetDefault("assets.customDir", "./tmp")
	viper.SetDefault("assets.sqlitePath", "./sigils.db")
	viper.SetDefault("assets.ttl", "1h")
	viper.SetDefault("assets.maxBytes", 5<<20)
	viper.SetDefault("assets.defaultSigil", "sigil1.png")

	viper.SetDefault("detect.faceCascade", "haarcascade_frontalface_default.xml")
	viper.SetDefault("detect.eyeCascade", "haarcascade_eye.xml")
}

// Load reads configuration from configDir. A missing config file is not an
// error; defaults and environment still apply.
func Load(configDir string) (*Config, error) {
	SetDefaults()

	viper.SetEnvPrefix("SIGIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("sigil-overlay")
	if configDir != "" {
		viper.AddConfigPath(configDir)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return Current()
}

// Current decodes the live viper settings into a Config.
func Current() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	switch c.Assets.Backend {
	case BackendDir, BackendSQLite:
	default:
		return fmt.Errorf("unknown assets.backend %q", c.Assets.Backend)
	}
	if !(c.Viewport.Width > 0) {
		return fmt.Errorf("viewport.width must be positive, got %v", c.Viewport.Width)
	}
	return nil
}

// ConfigFile returns the file the settings were read from, if any.
func ConfigFile() string {
	return viper.ConfigFileUsed()
}
