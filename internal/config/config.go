// Package config loads rqe settings from defaults, an optional config file
// and RQE_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. RQE_LOG_LEVEL.
const EnvPrefix = "RQE"

// Output and log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ValidFormats lists the accepted output and log formats.
var ValidFormats = []string{FormatText, FormatJSON}

// Config holds settings shared by every command.
type Config struct {
	Log LogConfig `mapstructure:"log"`

	// Format selects command output: text or json.
	Format string `mapstructure:"format"`

	// Journal is the default SQLite journal path for replay.
	Journal string `mapstructure:"journal"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", FormatText)
	v.SetDefault("format", FormatText)
	v.SetDefault("journal", "rqe.db")
}

// Load reads configuration. path may be empty; otherwise the file must
// exist and its type is taken from the extension (yaml, json, toml).
// Environment variables override the file: log.level is RQE_LOG_LEVEL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks formats and the log level.
func (c *Config) Validate() error {
	if !slices.Contains(ValidFormats, c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", c.Format, ValidFormats)
	}
	if !slices.Contains(ValidFormats, c.Log.Format) {
		return fmt.Errorf("invalid log format %q: must be one of %v", c.Log.Format, ValidFormats)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses Log.Level (debug, info, warn, error).
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// NewLogger builds a logger writing to w in Log.Format at Log.Level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
