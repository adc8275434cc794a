package main

import (
	"flag"
	"fmt"
	"io"

	"mediawatch/internal/config"
)

// cliOptions captures what the command line asked for. Flags override the
// config file and environment, so set flags are tracked separately from
// their values.
type cliOptions struct {
	ConfigPath  string
	Port        int
	DebounceMS  int
	LogFile     string
	LogLevel    string
	Verbose     bool
	Quiet       bool
	ShowVersion bool

	set map[string]bool
}

func parseArgs(args []string, errOut io.Writer) (cliOptions, error) {
	fs := flag.NewFlagSet("mediawatch", flag.ContinueOnError)
	fs.SetOutput(errOut)

	options := cliOptions{}
	fs.StringVar(&options.ConfigPath, "config", "", "Path to YAML config file")
	fs.IntVar(&options.Port, "port", config.DefaultPort, "Loopback port for the control connection (env: MEDIAWATCH_PORT)")
	fs.IntVar(&options.DebounceMS, "debounce-ms", config.DefaultDebounceMS, "Quiet window before a change is reported, in milliseconds (env: MEDIAWATCH_DEBOUNCE_MS)")
	fs.StringVar(&options.LogFile, "log-file", "", "Log destination; stderr when empty (env: MEDIAWATCH_LOG_FILE)")
	fs.StringVar(&options.LogLevel, "log-level", "", "Log level: debug, info, warning, error (env: MEDIAWATCH_LOG_LEVEL)")
	fs.BoolVar(&options.Verbose, "verbose", false, "Log at debug level")
	fs.BoolVar(&options.Quiet, "quiet", false, "Log errors only")
	fs.BoolVar(&options.ShowVersion, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: mediawatch [flags]")
		fmt.Fprintln(fs.Output(), "")
		fmt.Fprintln(fs.Output(), "Watches media folders and streams change events to the control connection.")
		fmt.Fprintln(fs.Output(), "")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return cliOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if options.Verbose && options.Quiet {
		return cliOptions{}, fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}

	options.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { options.set[f.Name] = true })
	return options, nil
}

// apply layers the flags onto a loaded config.
func (options cliOptions) apply(cfg config.Config) (config.Config, error) {
	if options.set["port"] {
		cfg.Port = options.Port
	}
	if options.set["debounce-ms"] {
		cfg.DebounceMS = options.DebounceMS
	}
	if options.set["log-file"] {
		cfg.LogFile = options.LogFile
	}
	if options.set["log-level"] {
		cfg.LogLevel = options.LogLevel
	}
	if options.Verbose {
		cfg.LogLevel = "debug"
	}
	if options.Quiet {
		cfg.LogLevel = "error"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
