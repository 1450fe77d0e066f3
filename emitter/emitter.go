// Package emitter ships samples and metric metadata to a Bosun-compatible
// HTTP/JSON ingestion endpoint. It runs its own independent tick, separate
// from the scheduler's collection tick, and owns the one queue of samples
// awaiting transmission.
package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/lukaspustina/rs-collector/models"
)

// selfStatsMetric is emitted once per tick with the number of samples about
// to be sent (including itself), mirroring the internal counter the
// original emitter thread tracks directly rather than sourcing from a
// collector.
const selfStatsMetric = "rs-collector.stats.samples"

// Config controls Emitter behaviour. Zero values fall back to spec defaults.
type Config struct {
	// Host is the base URL of the remote endpoint, e.g. "http://bosun:8070".
	// A bare host:port such as "localhost:8070" is sent to over plain http.
	Host string

	// Hostname is the value injected into every sample's "host" tag.
	Hostname string

	// DefaultTags are merged into every sample's tags after "host".
	DefaultTags models.Tags

	// DontSend disables actual network transmission; samples are still
	// accepted and drained from the queue every tick, and metadata is still
	// deduplicated, but nothing is POSTed. Useful for a dry run.
	DontSend bool

	// TickInterval is how often the queue is flushed. Default 15s.
	TickInterval time.Duration

	// QueueCap is the maximum number of queued samples; the oldest is
	// dropped to admit a new one past this point. Default 100000.
	QueueCap int

	// Retries is the HTTP retry count on a 5xx response or connection
	// error. Default 3.
	Retries int

	// Timeout is the per-request HTTP timeout. Default 3s.
	Timeout time.Duration
}

func (c *Config) withDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = 15 * time.Second
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 100_000
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
}

// Emitter batches samples on an independent tick and POSTs metadata as soon
// as it arrives (once per metric name, for the life of the process).
type Emitter struct {
	cfg    Config
	logger *slog.Logger
	client *retryablehttp.Client

	mu           sync.Mutex
	queue        []models.Sample
	metadataSent map[string]struct{}

	done chan struct{}
}

// New constructs an Emitter. Call Start to begin flushing on a tick.
func New(cfg Config, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.Retries
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = &leveledLogger{logger: logger}

	return &Emitter{
		cfg:          cfg,
		logger:       logger,
		client:       client,
		metadataSent: make(map[string]struct{}),
		done:         make(chan struct{}),
	}
}

// SubmitSample enqueues a sample for the next flush. If the queue is at
// capacity, the oldest queued sample is dropped to admit this one.
func (e *Emitter) SubmitSample(s models.Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) >= e.cfg.QueueCap {
		e.queue = e.queue[1:]
		e.logger.Warn("emitter: queue at capacity, dropping oldest sample", "cap", e.cfg.QueueCap)
	}
	e.queue = append(e.queue, s)
}

// SubmitMetadata sends metadata immediately, once per metric name for the
// life of the process. Subsequent calls for the same metric are no-ops.
func (e *Emitter) SubmitMetadata(m models.Metadata) {
	e.mu.Lock()
	if _, sent := e.metadataSent[m.Metric]; sent {
		e.mu.Unlock()
		return
	}
	e.metadataSent[m.Metric] = struct{}{}
	e.mu.Unlock()

	if e.cfg.DontSend {
		e.logger.Debug("emitter: dont-send, skipping metadata", "metric", m.Metric)
		return
	}
	if err := e.sendMetadata(m); err != nil {
		e.logger.Error("emitter: failed to send metadata", "metric", m.Metric, "error", err)
	}
}

// Start runs the flush loop until ctx is cancelled, flushes once more to
// drain whatever is left in the queue, then returns. The caller waits for
// completion with Stop.
func (e *Emitter) Start(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.logger.Info("emitter: started", "host", e.cfg.Host, "tick", e.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			e.flush()
			e.logger.Info("emitter: stopped")
			return
		case <-ticker.C:
			e.flush()
		}
	}
}

// Stop blocks until Start has returned.
func (e *Emitter) Stop() {
	<-e.done
}

// flush drains the queue, appends the self-stats sample, and sends every
// sample in order. Failures are logged and the sample is dropped — there is
// no retry beyond the HTTP client's own retry policy.
func (e *Emitter) flush() {
	e.mu.Lock()
	queueLen := float64(len(e.queue) + 1)
	e.queue = append(e.queue, models.Sample{
		Time:   time.Now(),
		Metric: selfStatsMetric,
		Value:  queueLen,
		Tags:   models.Tags{},
	})
	batch := e.queue
	e.queue = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	e.logger.Debug("emitter: flushing queue", "count", len(batch))

	for _, s := range batch {
		if e.cfg.DontSend {
			continue
		}
		if err := e.sendSample(s); err != nil {
			e.logger.Error("emitter: failed to send sample", "metric", s.Metric, "error", err)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire format
// ─────────────────────────────────────────────────────────────────────────────

type putDatum struct {
	Metric    string            `json:"metric"`
	Timestamp int64             `json:"timestamp"`
	Value     string            `json:"value"`
	Tags      map[string]string `json:"tags"`
}

type metadataPutEntry struct {
	Metric string `json:"Metric"`
	Name   string `json:"Name"`
	Value  string `json:"Value"`
}

// sendSample injects the host tag and default tags, then POSTs a single
// datum to /api/put. Tags are injected here (not by the caller) so every
// collector can build samples without knowing about host identity.
func (e *Emitter) sendSample(s models.Sample) error {
	tags := s.Tags.Clone()
	tags["host"] = e.cfg.Hostname
	for k, v := range e.cfg.DefaultTags {
		tags[k] = v
	}

	d := putDatum{
		Metric:    s.Metric,
		Timestamp: s.Time.Unix(),
		Value:     fmt.Sprintf("%v", s.Value),
		Tags:      tags,
	}
	return e.post("/api/put", d)
}

// sendMetadata expands a single Metadata record into the three descriptor
// entries the remote metadata endpoint expects: rate, unit, and description.
func (e *Emitter) sendMetadata(m models.Metadata) error {
	entries := []metadataPutEntry{
		{Metric: m.Metric, Name: "rate", Value: string(m.Rate)},
		{Metric: m.Metric, Name: "unit", Value: m.Unit},
		{Metric: m.Metric, Name: "desc", Value: m.Description},
	}
	return e.post("/api/metadata/put", entries)
}

func (e *Emitter) post(path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	base := e.cfg.Host
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	req, err := retryablehttp.NewRequest(http.MethodPost, base+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, path)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// retryablehttp logging adapter
// ─────────────────────────────────────────────────────────────────────────────

// leveledLogger adapts *slog.Logger to retryablehttp.LeveledLogger so retry
// attempts flow through the same structured logger as everything else.
type leveledLogger struct {
	logger *slog.Logger
}

func (l *leveledLogger) Error(msg string, kv ...interface{}) { l.logger.Error(msg, kv...) }
func (l *leveledLogger) Info(msg string, kv ...interface{})  { l.logger.Info(msg, kv...) }
func (l *leveledLogger) Debug(msg string, kv ...interface{}) { l.logger.Debug(msg, kv...) }
func (l *leveledLogger) Warn(msg string, kv ...interface{})  { l.logger.Warn(msg, kv...) }

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
