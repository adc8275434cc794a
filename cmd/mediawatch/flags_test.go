package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediawatch/internal/config"
)

func TestParseArgsDefaults(t *testing.T) {
	options, err := parseArgs(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if options.Port != config.DefaultPort {
		t.Fatalf("expected default port %d, got %d", config.DefaultPort, options.Port)
	}
	if len(options.set) != 0 {
		t.Fatalf("expected no flags marked set, got %v", options.set)
	}
}

func TestParseArgsRejectsPositional(t *testing.T) {
	if _, err := parseArgs([]string{"extra"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for positional argument")
	}
}

func TestParseArgsVerboseQuietConflict(t *testing.T) {
	if _, err := parseArgs([]string{"--verbose", "--quiet"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for conflicting flags")
	}
}

func TestApplyFlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 4000\ndebounce_ms: 900\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	options, err := parseArgs([]string{"--port", "5000"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err = options.apply(cfg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Port != 5000 {
		t.Fatalf("expected flag to win over file, got port %d", cfg.Port)
	}
	if cfg.DebounceMS != 900 {
		t.Fatalf("expected file debounce to survive, got %d", cfg.DebounceMS)
	}
}

func TestApplyUnsetFlagKeepsFileValue(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 4000

	options, err := parseArgs(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err = options.apply(cfg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Port != 4000 {
		t.Fatalf("expected file port to survive, got %d", cfg.Port)
	}
}

func TestApplyVerboseSetsDebugLevel(t *testing.T) {
	options, err := parseArgs([]string{"--verbose"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := options.apply(config.Default())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.LogLevel)
	}
}

func TestApplyRejectsInvalidPort(t *testing.T) {
	options, err := parseArgs([]string{"--port", "99999"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := options.apply(config.Default()); err == nil {
		t.Fatalf("expected validation error for out-of-range port")
	}
}

func TestRunVersionFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"--version"}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}
	if !strings.HasPrefix(out.String(), "mediawatch ") {
		t.Fatalf("expected version line, got %q", out.String())
	}
}

func TestRunUnknownFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"--bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("expected usage exit code, got %d", code)
	}
}

func TestRunMalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [nope\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var out, errOut bytes.Buffer
	if code := run([]string{"--config", path}, &out, &errOut); code != 1 {
		t.Fatalf("expected startup failure exit code, got %d", code)
	}
}
