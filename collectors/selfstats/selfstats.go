// Package selfstats reports rs-collector's own version and resident memory
// usage as samples, so the agent's health can be tracked like any other
// target.
package selfstats

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/lukaspustina/rs-collector/models"
)

// RSCollectorStatsSamplesMetric is the metric name the emitter uses for the
// per-flush queued-sample count. The value itself is computed by the
// emitter, not this collector; it is declared here only so its metadata gets
// published once alongside the rest of this collector's metrics.
const RSCollectorStatsSamplesMetric = "rs-collector.stats.samples"

// Version is the agent's own release version, in "x.y.z" form.
const Version = "1.0.0"

// Collector reports the running agent's version and memory footprint.
type Collector struct {
	id models.Id
}

// New constructs the single selfstats collector instance.
func New() *Collector { return &Collector{id: "rscollector"} }

// CreateInstances always returns exactly one Collector; this collector is
// not configurable and runs unconditionally.
func CreateInstances() []*Collector {
	return []*Collector{New()}
}

func (c *Collector) Id() models.Id { return c.id }

func (c *Collector) Init() error { return nil }

func (c *Collector) Metadata() []models.Metadata {
	return []models.Metadata{
		{
			Metric:      "rs-collector.version",
			Rate:        models.RateGauge,
			Unit:        "",
			Description: "Shows the version 'x.y.z' of rs-collector as x*1,000,000 + y*1,000 + z.",
		},
		{
			Metric:      "rs-collector.stats.rss",
			Rate:        models.RateGauge,
			Unit:        "KB",
			Description: "Shows the resident set size (physical memory) in KB consumed by rs-collector; if supported.",
		},
		{
			// This value is actually computed and sent by the emitter directly.
			Metric:      RSCollectorStatsSamplesMetric,
			Rate:        models.RateGauge,
			Unit:        "Samples",
			Description: "Shows the number of transmitted samples.",
		},
	}
}

func (c *Collector) Collect() ([]models.Sample, error) {
	now := time.Now()

	version := parseVersion(Version)

	rss := -1.0
	if v, ok := getRSS(); ok {
		rss = v
	}

	return []models.Sample{
		{Time: now, Metric: "rs-collector.version", Value: version, Tags: models.Tags{}},
		{Time: now, Metric: "rs-collector.stats.rss", Value: rss, Tags: models.Tags{}},
	}, nil
}

// parseVersion turns "x.y.z" into x*1,000,000 + y*1,000 + z, returning -1 if
// version is not a well formed three-part dotted version.
func parseVersion(version string) float64 {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return -1
	}
	values := make([]float64, 3)
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return -1
		}
		values[i] = f
	}
	return values[0]*1_000_000 + values[1]*1_000 + values[2]
}

// getRSS reads the resident set size, in KB, from /proc/self/status. It
// reports ok=false on any platform where /proc is unavailable.
func getRSS() (float64, bool) {
	if runtime.GOOS != "linux" {
		return 0, false
	}

	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, false
		}
		return kb, true
	}
	return 0, false
}

func (c *Collector) Shutdown() {}

func (c *Collector) TickInterval() int { return 1 }
