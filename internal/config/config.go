// Package config loads fbh settings from defaults, an optional config file
// and FBH_* environment variables, and builds the process logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/fpp-125/fbh/internal/flatpak"
)

const (
	AppName   = "fbh"
	EnvPrefix = "FBH"
)

// Level is the output verbosity.
type Level int

const (
	Quiet Level = iota
	Basic
	Full
)

func (l Level) String() string {
	switch l {
	case Basic:
		return "basic"
	case Full:
		return "full"
	default:
		return "quiet"
	}
}

// ParseLevel accepts the FBH_LOG spellings: empty or "0" for quiet, "1" for
// basic, "2" or "full" for full.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "quiet":
		return Quiet, nil
	case "1", "basic":
		return Basic, nil
	case "2", "full":
		return Full, nil
	}
	return Quiet, fmt.Errorf("invalid log level %q (want 1, 2 or full)", s)
}

// LevelFromCount maps a repeated -v flag onto a level.
func LevelFromCount(n int) Level {
	switch {
	case n <= 0:
		return Quiet
	case n == 1:
		return Basic
	default:
		return Full
	}
}

type Config struct {
	Log string `mapstructure:"log"`
	// EnvPrefix forwards host variables with this prefix into build commands.
	EnvPrefix  string `mapstructure:"env_prefix"`
	FlatpakBin string `mapstructure:"flatpak_bin"`
	BuilderBin string `mapstructure:"builder_bin"`
	GdbusBin   string `mapstructure:"gdbus_bin"`
	History    bool   `mapstructure:"history"`
}

func Default() Config {
	return Config{
		FlatpakBin: flatpak.DefaultFlatpak,
		BuilderBin: flatpak.DefaultBuilder,
		GdbusBin:   flatpak.DefaultGdbus,
		History:    true,
	}
}

// Level parses the configured log value.
func (c Config) Level() (Level, error) {
	return ParseLevel(c.Log)
}

func (c Config) Tools() flatpak.Tools {
	return flatpak.Tools{Flatpak: c.FlatpakBin, Builder: c.BuilderBin, Gdbus: c.GdbusBin}
}

// Dir returns $XDG_CONFIG_HOME/fbh, defaulting to ~/.config/fbh.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// Load reads configuration. path overrides the config file location; when
// empty, config.yaml under Dir is used if present.
func Load(path string) (Config, error) {
	v := viper.New()
	defaults := Default()
	v.SetDefault("log", defaults.Log)
	v.SetDefault("env_prefix", defaults.EnvPrefix)
	v.SetDefault("flatpak_bin", defaults.FlatpakBin)
	v.SetDefault("builder_bin", defaults.BuilderBin)
	v.SetDefault("gdbus_bin", defaults.GdbusBin)
	v.SetDefault("history", defaults.History)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path == "" {
		dir, err := Dir()
		if err == nil {
			candidate := filepath.Join(dir, "config.yaml")
			if _, statErr := os.Stat(candidate); statErr == nil {
				path = candidate
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var errNilWriter = errors.New("logger writer is nil")

// NewLogger builds the single logger shared by all commands. Quiet still
// reports warnings and errors.
func NewLogger(w io.Writer, level Level) (*log.Logger, error) {
	if w == nil {
		return nil, errNilWriter
	}
	opts := log.Options{Prefix: AppName}
	switch level {
	case Basic:
		opts.Level = log.InfoLevel
	case Full:
		opts.Level = log.DebugLevel
		opts.ReportTimestamp = true
	default:
		opts.Level = log.WarnLevel
	}
	return log.NewWithOptions(w, opts), nil
}
