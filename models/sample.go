// Package models defines the value objects shared by every collector, the
// scheduler, and the emitter: samples, metric metadata, and tag sets.
package models

import "time"

// Tags is an unordered set of key/value dimensions attached to a Sample or
// Metadata record. Bosun requires at least one tag per datum; the emitter is
// responsible for injecting the "host" tag and any configured default tags
// before a Sample leaves the process.
type Tags map[string]string

// Clone returns a shallow copy of t. Collectors build their own Tags map per
// sample; the emitter clones before mutating so the collector's copy is never
// shared across goroutines.
func (t Tags) Clone() Tags {
	if t == nil {
		return Tags{}
	}
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Rate describes how a metric's value should be interpreted by the remote
// time-series store's metadata view.
type Rate string

const (
	RateGauge   Rate = "gauge"
	RateCounter Rate = "counter"
	RateRate    Rate = "rate"
)

// Sample is a single timestamped measurement.
type Sample struct {
	Time   time.Time
	Metric string
	Value  float64
	Tags   Tags
}

// Metadata describes a metric's shape; it is sent at most once per metric
// name over the lifetime of the process, not on every tick.
type Metadata struct {
	Metric      string
	Rate        Rate
	Unit        string
	Description string
}

// Id identifies a collector instance, e.g. "galera#root@/var/run/mysqld.sock"
// or "mongo#rs0#app@10.0.0.1:27017". Instances of the same collector type
// with different configured targets get distinct Ids.
type Id string
