// Package config loads daemon settings from an optional YAML file with
// environment overrides. Flag handling lives in the command; precedence is
// flag > environment > file > default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort       = 9847
	DefaultDebounceMS = 500
	DefaultMaxWatches = 256
	DefaultTickMS     = 100
)

type Config struct {
	Port       int      `yaml:"port"`
	DebounceMS int      `yaml:"debounce_ms"`
	TickMS     int      `yaml:"tick_ms"`
	MaxWatches int      `yaml:"max_watches"`
	LogLevel   string   `yaml:"log_level"`
	LogFile    string   `yaml:"log_file"`
	Ignore     []string `yaml:"ignore"`
}

func Default() Config {
	return Config{
		Port:       DefaultPort,
		DebounceMS: DefaultDebounceMS,
		TickMS:     DefaultTickMS,
		MaxWatches: DefaultMaxWatches,
		LogLevel:   "info",
	}
}

// Load merges the file at path (when it exists) and environment overrides
// onto the defaults. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(payload, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if raw := os.Getenv("MEDIAWATCH_PORT"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			cfg.Port = parsed
		}
	}
	if raw := os.Getenv("MEDIAWATCH_DEBOUNCE_MS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			cfg.DebounceMS = parsed
		}
	}
	if raw := os.Getenv("MEDIAWATCH_MAX_WATCHES"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			cfg.MaxWatches = parsed
		}
	}
	if raw := os.Getenv("MEDIAWATCH_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("MEDIAWATCH_LOG_FILE"); raw != "" {
		cfg.LogFile = raw
	}
}

func (cfg Config) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.DebounceMS <= 0 {
		return fmt.Errorf("debounce_ms must be positive, got %d", cfg.DebounceMS)
	}
	if cfg.TickMS <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", cfg.TickMS)
	}
	if cfg.MaxWatches <= 0 {
		return fmt.Errorf("max_watches must be positive, got %d", cfg.MaxWatches)
	}
	return nil
}

func (cfg Config) Debounce() time.Duration {
	return time.Duration(cfg.DebounceMS) * time.Millisecond
}

func (cfg Config) Tick() time.Duration {
	return time.Duration(cfg.TickMS) * time.Millisecond
}
