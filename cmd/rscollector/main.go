// Command rscollector is the main telemetry agent binary.
//
// It loads TOML configuration, builds every enabled collector, and runs
// until interrupted (SIGINT / SIGTERM).
//
// Usage:
//
//	rscollector [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukaspustina/rs-collector/app"
)

// version is the agent's own release version, printed by --version. The
// selfstats collector reports its own constant, selfstats.Version, which
// carries the same value.
const version = "1.0.0"

// Exit codes mirror the original implementation: 0 for a clean shutdown,
// -1 for a logger setup failure, -2 for a configuration error.
const (
	exitOK            = 0
	exitLoggerFailure = -1
	exitConfigFailure = -2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		showConfig bool
		showVer    bool
		logLevel   string
		logFmt     string
	)

	flag.StringVar(&configPath, "c", "/etc/rs-collector.conf", "Path to the TOML configuration file")
	flag.StringVar(&configPath, "config", "/etc/rs-collector.conf", "Path to the TOML configuration file")
	flag.BoolVar(&showConfig, "show-config", false, "Print the effective configuration, then keep running")
	flag.BoolVar(&showVer, "version", false, "Print the version and exit")
	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "text", "Log format: json, text")
	flag.Parse()

	if showVer {
		fmt.Println(version)
		return exitOK
	}

	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rscollector: %v\n", err)
		return exitLoggerFailure
	}

	application := app.New(app.Config{ConfigPath: configPath}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		logger.Error("rscollector: failed to start", "error", err)
		return exitConfigFailure
	}

	if showConfig {
		if err := application.ShowConfig(os.Stdout); err != nil {
			logger.Error("rscollector: failed to print configuration", "error", err)
		}
	}

	logger.Info("rscollector: running — press Ctrl-C to stop")
	<-ctx.Done()
	logger.Info("rscollector: received shutdown signal")

	application.Stop()
	return exitOK
}

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}
