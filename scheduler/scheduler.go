// Package scheduler owns every collector's lifecycle: it initializes each
// one, ticks them for samples on a fixed interval, forwards what they
// produce to the emitter, and recovers from collection failures by
// re-initializing the offending collector after a backoff.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lukaspustina/rs-collector/collector"
	"github.com/lukaspustina/rs-collector/models"
	"github.com/lukaspustina/rs-collector/runner"
)

// Emitter is the subset of emitter.Emitter the scheduler depends on. An
// interface keeps the scheduler testable without a real HTTP emitter.
type Emitter interface {
	SubmitSample(models.Sample)
	SubmitMetadata(models.Metadata)
}

// Options configures scheduler timing. Zero values fall back to spec
// defaults.
type Options struct {
	// TickInterval is how often every collector is asked for a sample.
	// Default 15s.
	TickInterval time.Duration

	// ReinitBackoff is the pause before Init is retried after a
	// CollectionError. Default 10s.
	ReinitBackoff time.Duration

	// EventBuffer sizes the shared runner→scheduler events channel.
	// Default 256.
	EventBuffer int
}

func (o *Options) withDefaults() {
	if o.TickInterval <= 0 {
		o.TickInterval = 15 * time.Second
	}
	if o.ReinitBackoff <= 0 {
		o.ReinitBackoff = 10 * time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
}

// controllerHandle is the scheduler's handle onto one running collector:
// the channel used to command its runner, and the tick bookkeeping needed
// to honor a collector's TickInterval() (sample every Nth tick).
type controllerHandle struct {
	requests     chan runner.Request
	tickInterval int
	ticksWaited  int
}

// Scheduler is the top-level collection loop.
type Scheduler struct {
	opts    Options
	emitter Emitter
	logger  *slog.Logger

	controllers map[models.Id]*controllerHandle
	events      chan runner.Event

	wg   sync.WaitGroup
	done chan struct{}
}

// New creates a Scheduler and initializes every collector. Collectors whose
// Init fails are logged and excluded for the life of the process — matching
// the source's create_controllers, which never retries a collector that
// never successfully started.
func New(collectors []collector.Collector, emitter Emitter, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	opts.withDefaults()

	s := &Scheduler{
		opts:        opts,
		emitter:     emitter,
		logger:      logger,
		controllers: make(map[models.Id]*controllerHandle),
		events:      make(chan runner.Event, opts.EventBuffer),
		done:        make(chan struct{}),
	}

	for _, c := range collectors {
		if err := c.Init(); err != nil {
			logger.Error("scheduler: failed to initialize collector", "id", c.Id(), "error", err)
			continue
		}
		s.register(c)
	}
	logger.Info("scheduler: loaded collectors", "count", len(s.controllers))
	return s
}

func (s *Scheduler) register(c collector.Collector) {
	requests := make(chan runner.Request, 1)
	interval := c.TickInterval()
	if interval < 1 {
		interval = 1
	}
	s.controllers[c.Id()] = &controllerHandle{requests: requests, tickInterval: interval}

	r := runner.New(c.Id(), c, requests, s.events, s.opts.ReinitBackoff, s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		r.Run()
	}()
}

// Start runs the scheduling loop until ctx is cancelled, then tears every
// collector down and returns once all runner goroutines have exited.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)
	s.logger.Info("scheduler: entering event loop")

	// Request metadata once at startup; it is never streamed on a tick.
	for _, ch := range s.controllers {
		ch.requests <- runner.ReqMetadata
	}

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return

		case <-ticker.C:
			s.fireTick()

		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

// fireTick asks every collector due this tick for a sample. Dispatch is
// non-blocking: a collector whose request channel still holds an
// undelivered Sample request (the runner hasn't read it yet) has its new
// request dropped rather than queued.
func (s *Scheduler) fireTick() {
	for id, ch := range s.controllers {
		ch.ticksWaited++
		if ch.ticksWaited < ch.tickInterval {
			continue
		}
		ch.ticksWaited = 0
		select {
		case ch.requests <- runner.ReqSample:
		default:
			s.logger.Warn("scheduler: runner busy, dropping sample tick", "id", id)
		}
	}
}

func (s *Scheduler) handleEvent(ev runner.Event) {
	switch {
	case ev.Exited:
		// The runner goroutine has returned on its own (failed re-Init) and
		// will never read its request channel again. Drop it so neither
		// fireTick nor teardown ever sends to it.
		s.logger.Warn("scheduler: collector exited permanently, removing", "id", ev.Id)
		delete(s.controllers, ev.Id)

	case ev.Err != nil:
		s.logger.Warn("scheduler: collection error, requesting re-init", "id", ev.Id, "error", ev.Err)
		if ch, ok := s.controllers[ev.Id]; ok {
			select {
			case ch.requests <- runner.ReqInit:
			default:
				s.logger.Warn("scheduler: init already pending, dropping", "id", ev.Id)
			}
		}

	case ev.Samples != nil:
		for _, sample := range ev.Samples {
			s.emitter.SubmitSample(sample)
		}

	case ev.Metadata != nil:
		for _, md := range ev.Metadata {
			s.emitter.SubmitMetadata(md)
		}

	case ev.Helo:
		s.logger.Debug("scheduler: received helo/ack", "id", ev.Id)
	}
}

// teardown asks every collector to shut down, then drains remaining events
// (flushing any in-flight samples to the emitter) until every runner
// goroutine has exited.
func (s *Scheduler) teardown() {
	s.logger.Info("scheduler: shutting down collectors")

	// Catch up on any event already sitting in the channel — in particular
	// an Exited from a collector whose re-Init failed in the instant before
	// shutdown began — so its dead entry is gone before the broadcast below.
drain:
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		default:
			break drain
		}
	}

	for id, ch := range s.controllers {
		select {
		case ch.requests <- runner.ReqShutdown:
		case <-time.After(5 * time.Second):
			// The runner must have exited on its own without the Exited
			// event reaching us yet; don't let a dead request channel
			// block shutdown forever.
			s.logger.Warn("scheduler: timed out signaling shutdown, runner may have already exited", "id", id)
		}
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(s.events)
		close(drained)
	}()

	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				<-drained
				s.logger.Info("scheduler: all collectors stopped")
				return
			}
			s.handleEvent(ev)
		}
	}
}

// Stop blocks until the scheduling loop (started with Start) has returned.
// The caller must cancel the context passed to Start first.
func (s *Scheduler) Stop() {
	<-s.done
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
