// Command mediawatch watches media folders and streams change events to a
// single control connection on the loopback interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"mediawatch/internal/config"
	"mediawatch/internal/event"
	"mediawatch/internal/logging"
	"mediawatch/internal/media"
	"mediawatch/internal/protocol"
	"mediawatch/internal/server"
	"mediawatch/internal/version"
	"mediawatch/internal/watcher"
)

const shutdownGrace = 2 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	options, err := parseArgs(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, err)
		return 2
	}
	if options.ShowVersion {
		fmt.Fprintf(out, "mediawatch %s\n", version.String())
		return 0
	}

	configPath := options.ConfigPath
	if configPath == "" {
		configPath = os.Getenv("MEDIAWATCH_CONFIG")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	cfg, err = options.apply(cfg)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	logger, closeLogs := buildLogger(cfg, errOut)
	defer closeLogs()

	ignore, err := media.NewIgnoreSet(cfg.Ignore)
	if err != nil {
		logger.Error("invalid ignore pattern", map[string]string{"error": err.Error()})
		return 1
	}

	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	// Blocking mode: a settle batch larger than the session buffer must
	// reach the client intact, so the core parks on a slow session instead
	// of dropping; the write timeout bounds a wedged connection.
	bus := event.NewBus[protocol.Event](busCtx, event.BusOptions{
		Name:         "events",
		BlockOnFull:  true,
		WriteTimeout: 10 * time.Second,
	})

	core := watcher.New(watcher.Options{
		Backend:    watcher.NewFSBackend(logger),
		Bus:        bus,
		Logger:     logger,
		Debounce:   cfg.Debounce(),
		Tick:       cfg.Tick(),
		MaxWatches: cfg.MaxWatches,
		Ignore:     ignore,
	})

	srv, err := server.New(server.Options{
		Port:   cfg.Port,
		Core:   core,
		Bus:    bus,
		Logger: logger,
	})
	if err != nil {
		logger.Error("startup failed", map[string]string{"error": err.Error()})
		core.Shutdown()
		bus.Close()
		return 1
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	logger.Info("daemon started", map[string]string{
		"addr":    srv.Addr(),
		"version": version.String(),
	})

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	// SIGQUIT dumps the buffered log tail instead of killing the process,
	// so a wedged daemon can be inspected without debug logging enabled.
	quitSignals := make(chan os.Signal, 1)
	signal.Notify(quitSignals, syscall.SIGQUIT)
	defer signal.Stop(quitSignals)
	go func() {
		for range quitSignals {
			dumpRecentLogs(logger.Buffer(), errOut)
		}
	}()

	exitCode := 0
	select {
	case sig := <-signals:
		logger.Info("shutdown signal received", map[string]string{"signal": sig.String()})
	case <-srv.ShutdownRequested():
		logger.Info("shutdown command received", nil)
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", map[string]string{"error": err.Error()})
			exitCode = 1
		}
	}

	stats := core.Metrics()

	coordinator := newShutdownCoordinator(logger)
	coordinator.Add("server", srv.Close)
	coordinator.Add("watcher", func(context.Context) error {
		core.Shutdown()
		return nil
	})
	coordinator.Add("bus", func(context.Context) error {
		bus.Close()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := coordinator.Run(ctx); err != nil {
		logger.Warn("shutdown finished with errors", map[string]string{"error": err.Error()})
	}
	logger.Info("daemon stopped", map[string]string{
		"watches":         strconv.Itoa(stats.ActiveWatches),
		"events_emitted":  strconv.FormatUint(stats.EventsEmitted, 10),
		"events_filtered": strconv.FormatUint(stats.EventsFiltered, 10),
	})
	return exitCode
}

// dumpRecentLogs writes the buffered log tail to w, oldest first.
func dumpRecentLogs(buffer *logging.Buffer, w io.Writer) {
	if buffer == nil {
		return
	}
	entries := buffer.List()
	fmt.Fprintf(w, "=== recent log entries (%d) ===\n", len(entries))
	for _, entry := range entries {
		fmt.Fprintf(w, "%s %s\n", entry.Timestamp.Format(time.RFC3339), logging.FormatEntry(entry))
	}
}

// buildLogger wires log output to stderr or a rotating file. The returned
// closer flushes the file sink.
func buildLogger(cfg config.Config, errOut io.Writer) (*logging.Logger, func()) {
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	buffer := logging.NewBuffer(logging.DefaultBufferSize)

	if cfg.LogFile == "" {
		return logging.NewLoggerWithOutput(buffer, level, errOut), func() {}
	}
	sink := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	return logging.NewLoggerWithOutput(buffer, level, sink), func() { _ = sink.Close() }
}
