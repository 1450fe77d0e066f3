// Package collector defines the capability interface every metric source
// implements, plus the error kinds the scheduler and runner react to.
package collector

import (
	"fmt"

	"github.com/lukaspustina/rs-collector/models"
)

// Collector is the capability every metric source implements. Init must be
// re-callable: the runner invokes it again after a CollectionError, so a
// collector must tear down any stale connection before establishing a new
// one rather than assuming it is only ever called once.
type Collector interface {
	// Init (re-)establishes whatever connection or state the collector needs.
	// Called once at startup and again after a failed Collect.
	Init() error

	// Id returns this instance's identity, stable for its lifetime.
	Id() models.Id

	// Metadata returns the metric descriptors this collector ever emits.
	// Called once after a successful Init; never streamed on a tick.
	Metadata() []models.Metadata

	// Collect samples the underlying source. An error here is a
	// CollectionError and triggers re-Init after a backoff, not a crash.
	Collect() ([]models.Sample, error)

	// Shutdown releases resources. Called exactly once, from the runner's
	// shutdown path. Never called concurrently with Collect.
	Shutdown()

	// TickInterval returns how many scheduler ticks to wait between samples
	// of this collector. 1 means "every tick" (the default for collectors
	// that don't override it).
	TickInterval() int
}

// Kind distinguishes the three ways a Collector can fail.
type Kind int

const (
	// KindInit means Init failed to establish the collector's connection.
	KindInit Kind = iota
	// KindCollection means a Collect call failed; the runner will retry
	// Init after a backoff.
	KindCollection
	// KindShutdown means Shutdown encountered an error while releasing
	// resources. It is logged but never retried.
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindCollection:
		return "collection"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Error wraps a collector failure with the phase it occurred in.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("collector error: %s failed because %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewInitError wraps err as a KindInit Error.
func NewInitError(err error) *Error { return &Error{Kind: KindInit, Err: err} }

// NewCollectionError wraps err as a KindCollection Error.
func NewCollectionError(err error) *Error { return &Error{Kind: KindCollection, Err: err} }

// NewShutdownError wraps err as a KindShutdown Error.
func NewShutdownError(err error) *Error { return &Error{Kind: KindShutdown, Err: err} }
