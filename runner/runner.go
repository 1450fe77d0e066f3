// Package runner drives a single collector through its lifecycle: init,
// periodic metadata/sample collection with at-most-one-in-flight semantics,
// and shutdown. It is the Go counterpart of the original CollectorRunner.
package runner

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lukaspustina/rs-collector/collector"
	"github.com/lukaspustina/rs-collector/models"
)

// Request is a command sent from the scheduler to a Runner.
type Request int

const (
	ReqHelo Request = iota
	ReqInit
	ReqMetadata
	ReqSample
	ReqShutdown
)

// Event is a message sent from a Runner back to the scheduler.
type Event struct {
	Id       models.Id
	Helo     bool // acknowledges Helo or a completed Shutdown
	Samples  []models.Sample
	Metadata []models.Metadata
	Err      error // non-nil: a CollectionError, scheduler should request re-Init

	// Exited is true when Run has returned on its own, outside a requested
	// Shutdown — currently only after a failed re-Init. The scheduler must
	// drop this collector from its live set: its request channel has no
	// reader left, so any further send (including the shutdown broadcast)
	// would block forever.
	Exited bool
}

// Runner owns one Collector and serializes access to it: Init, Shutdown, and
// the goroutine spawned by a Sample/Metadata request all share one mutex so
// that Collect is never called while Shutdown or another Collect is running.
type Runner struct {
	id        models.Id
	collector collector.Collector
	requests  <-chan Request
	events    chan<- Event

	reinitBackoff time.Duration
	logger        *slog.Logger

	mu sync.Mutex
}

// New constructs a Runner. reinitBackoff is the pause before Init is retried
// after a CollectionError (spec default 10s, configurable).
func New(id models.Id, c collector.Collector, requests <-chan Request, events chan<- Event, reinitBackoff time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if reinitBackoff <= 0 {
		reinitBackoff = 10 * time.Second
	}
	return &Runner{
		id:            id,
		collector:     c,
		requests:      requests,
		events:        events,
		reinitBackoff: reinitBackoff,
		logger:        logger,
	}
}

// Run processes requests until the channel is closed, a Shutdown request
// is handled, or a re-Init fails. It is meant to be called from its own goroutine; the caller
// (scheduler) tracks completion with a sync.WaitGroup.
func (r *Runner) Run() {
	r.logger.Info("runner: started", "id", r.id)
	for req := range r.requests {
		switch req {
		case ReqHelo:
			r.logger.Debug("runner: received helo", "id", r.id)
			r.events <- Event{Id: r.id, Helo: true}

		case ReqInit:
			r.logger.Debug("runner: received init, backing off", "id", r.id, "backoff", r.reinitBackoff)
			time.Sleep(r.reinitBackoff)
			r.mu.Lock()
			err := r.collector.Init()
			r.mu.Unlock()
			if err != nil {
				r.logger.Error("runner: re-init failed, shutting collector down", "id", r.id, "error", err)
				r.mu.Lock()
				r.collector.Shutdown()
				r.mu.Unlock()
				r.events <- Event{Id: r.id, Exited: true}
				return
			}
			r.logger.Info("runner: re-initialized collector", "id", r.id)

		case ReqMetadata:
			r.collectMetadata()

		case ReqSample:
			r.collectSample()

		case ReqShutdown:
			r.logger.Debug("runner: received shutdown", "id", r.id)
			// Blocks until any in-flight Collect/Metadata goroutine has
			// released the mutex, so Shutdown never races a live Collect.
			r.mu.Lock()
			r.collector.Shutdown()
			r.mu.Unlock()
			r.events <- Event{Id: r.id, Helo: true}
			r.logger.Info("runner: stopped", "id", r.id)
			return
		}
	}
}

// collectMetadata fetches metadata in a short-lived goroutine, skipping
// silently if a Collect or Shutdown already holds the lock.
func (r *Runner) collectMetadata() {
	if !r.mu.TryLock() {
		r.logger.Debug("runner: metadata already running, skipping", "id", r.id)
		return
	}
	go func() {
		defer r.mu.Unlock()
		md := r.collector.Metadata()
		if len(md) > 0 {
			r.events <- Event{Id: r.id, Metadata: md}
		}
	}()
}

// collectSample samples the collector in a short-lived goroutine, skipping
// silently if a prior Collect is still running (at-most-one-in-flight).
func (r *Runner) collectSample() {
	if !r.mu.TryLock() {
		r.logger.Debug("runner: sampling already running, skipping", "id", r.id)
		return
	}
	go func() {
		defer r.mu.Unlock()
		samples, err := r.collector.Collect()
		if err != nil {
			r.logger.Warn("runner: collection error", "id", r.id, "error", err)
			r.events <- Event{Id: r.id, Err: collector.NewCollectionError(err)}
			return
		}
		if len(samples) > 0 {
			r.events <- Event{Id: r.id, Samples: samples}
		}
	}()
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
