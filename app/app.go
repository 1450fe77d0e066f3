// Package app wires configuration, collectors, the scheduler, and the
// emitter together and manages their combined lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lukaspustina/rs-collector/collector"
	"github.com/lukaspustina/rs-collector/collectors/galera"
	"github.com/lukaspustina/rs-collector/collectors/hasipaddr"
	"github.com/lukaspustina/rs-collector/collectors/jvm"
	"github.com/lukaspustina/rs-collector/collectors/megaraid"
	"github.com/lukaspustina/rs-collector/collectors/mongo"
	"github.com/lukaspustina/rs-collector/collectors/netif"
	"github.com/lukaspustina/rs-collector/collectors/postfix"
	"github.com/lukaspustina/rs-collector/collectors/selfstats"
	"github.com/lukaspustina/rs-collector/config"
	"github.com/lukaspustina/rs-collector/emitter"
	"github.com/lukaspustina/rs-collector/scheduler"
)

// Config holds the top-level settings for the application.
type Config struct {
	// ConfigPath is the TOML configuration file to load.
	ConfigPath string

	// EventBuffer is the capacity of the scheduler's event channel.
	// Default 1000.
	EventBuffer int
}

func (c *Config) withDefaults() {
	if c.EventBuffer <= 0 {
		c.EventBuffer = 1000
	}
}

// App loads configuration, constructs every enabled collector, and runs the
// scheduler and emitter until Stop is called.
type App struct {
	cfg    Config
	logger *slog.Logger

	loadedCfg config.Config
	sched     *scheduler.Scheduler
	emit      *emitter.Emitter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything — call Start for that.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	return &App{cfg: cfg, logger: logger}
}

// Start loads configuration, constructs every collector named in it, and
// launches the scheduler and emitter goroutines.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("app: loading configuration", "path", a.cfg.ConfigPath)
	cfg, err := config.Load(a.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.loadedCfg = cfg

	collectors := buildCollectors(&cfg)
	a.logger.Info("app: collectors created", "count", len(collectors))

	a.emit = emitter.New(emitter.Config{
		Host:        cfg.Host,
		Hostname:    cfg.Hostname,
		DefaultTags: cfg.TagsAsModel(),
		DontSend:    cfg.DontSend,
		Retries:     cfg.EmitterRetries,
		Timeout:     time.Duration(cfg.EmitterTimeoutSec) * time.Second,
		QueueCap:    cfg.EmitterQueueCap,
	}, a.logger)

	a.sched = scheduler.New(collectors, a.emit, scheduler.Options{
		ReinitBackoff: time.Duration(cfg.ReinitBackoffSec) * time.Second,
		EventBuffer:   a.cfg.EventBuffer,
	}, a.logger)

	pipeCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.emit.Start(pipeCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sched.Start(pipeCtx)
	}()

	a.logger.Info("app: running", "host", cfg.Host, "hostname", cfg.Hostname)
	return nil
}

// Stop performs a graceful shutdown: cancel the shared context, wait for the
// scheduler to drain in-flight collectors and tear them down, then wait for
// the emitter's loop to return. The emitter sees the same cancellation and
// makes its final flush concurrently with the scheduler's teardown, so
// samples the scheduler forwards after that flush are not sent.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.emit != nil {
		a.emit.Stop()
	}

	a.wg.Wait()
	a.logger.Info("app: shutdown complete")
}

// ShowConfig writes the effective configuration to w, for the --show-config
// CLI flag. It must be called after Start.
func (a *App) ShowConfig(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%+v\n", a.loadedCfg)
	return err
}

// buildCollectors constructs every collector enabled by cfg, in a fixed
// order so startup logs are stable across runs.
func buildCollectors(cfg *config.Config) []collector.Collector {
	var out []collector.Collector

	for _, c := range selfstats.CreateInstances() {
		out = append(out, c)
	}
	for _, c := range galera.CreateInstances(cfg) {
		out = append(out, c)
	}
	for _, c := range mongo.CreateInstances(cfg) {
		out = append(out, c)
	}
	for _, c := range postfix.CreateInstances(cfg) {
		out = append(out, c)
	}
	for _, c := range jvm.CreateInstances(cfg) {
		out = append(out, c)
	}
	for _, c := range megaraid.CreateInstances(cfg) {
		out = append(out, c)
	}
	for _, c := range hasipaddr.CreateInstances(cfg) {
		out = append(out, c)
	}
	for _, c := range netif.CreateInstances(cfg) {
		out = append(out, c)
	}

	return out
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
