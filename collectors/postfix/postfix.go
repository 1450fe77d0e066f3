// Package postfix samples Postfix mail queue depths by shelling out to
// qshape and parsing its per-bucket age distribution.
package postfix

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/lukaspustina/rs-collector/config"
	"github.com/lukaspustina/rs-collector/models"
)

const (
	metricQueues = "postfix.queues"
	qshapeBinary = "/usr/sbin/qshape"
	qshapeTimeout = 10 * time.Second
)

var queues = []string{"maildrop", "incoming", "hold", "active", "deferred"}

// Collector samples the five standard Postfix queues.
type Collector struct {
	id models.Id
}

// New constructs the single Postfix collector instance.
func New() *Collector {
	return &Collector{id: "postfix"}
}

// CreateInstances builds zero or one Collector, mirroring
// collectors::postfix::create_instances: the collector is enabled purely by
// the presence of the [Postfix] table in config.
func CreateInstances(cfg *config.Config) []*Collector {
	if cfg.Postfix == nil {
		return nil
	}
	return []*Collector{New()}
}

func (c *Collector) Id() models.Id { return c.id }

// Init verifies qshape is present and executable.
func (c *Collector) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), qshapeTimeout)
	defer cancel()
	if err := exec.CommandContext(ctx, qshapeBinary).Run(); err != nil {
		return fmt.Errorf("postfix: qshape not runnable: %w", err)
	}
	return nil
}

func (c *Collector) Metadata() []models.Metadata {
	descs := map[string]string{
		"maildrop": "local submission directory; bucket tag represents age distribution.",
		"incoming": "new message queue; bucket tag represents age distribution.",
		"hold":     "messages waiting for tech support; bucket tag represents age distribution.",
		"active":   "messages scheduled for delivery; bucket tag represents age distribution.",
		"deferred": "messages postponed for later delivery; bucket tag represents age distribution.",
	}
	out := make([]models.Metadata, 0, len(queues))
	for _, q := range queues {
		out = append(out, models.Metadata{
			Metric:      fmt.Sprintf("%s.%s", metricQueues, q),
			Rate:        models.RateGauge,
			Unit:        "messages",
			Description: descs[q],
		})
	}
	return out
}

func (c *Collector) Collect() ([]models.Sample, error) {
	var samples []models.Sample
	for _, q := range queues {
		qSamples, err := c.sampleQueue(q)
		if err != nil {
			return nil, err
		}
		samples = append(samples, qSamples...)
	}
	return samples, nil
}

func (c *Collector) sampleQueue(queue string) ([]models.Sample, error) {
	ctx, cancel := context.WithTimeout(context.Background(), qshapeTimeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, qshapeBinary, queue)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("postfix: qshape %s: %w", queue, err)
	}

	lines := strings.SplitN(strings.TrimRight(stdout.String(), "\n"), "\n", 3)
	if len(lines) < 2 {
		return nil, fmt.Errorf("postfix: qshape %s: unexpected output %q", queue, stdout.String())
	}
	header := strings.Fields(lines[0])
	totals := strings.Fields(lines[1])

	now := time.Now()
	var samples []models.Sample
	for i := 2; i < len(totals); i++ {
		if i-1 >= len(header) {
			break
		}
		bucket := sanitizeBucket(header[i-1])
		n, err := strconv.Atoi(totals[i])
		if err != nil {
			return nil, fmt.Errorf("postfix: qshape %s: parse bucket %q: %w", queue, totals[i], err)
		}
		samples = append(samples, models.Sample{
			Time:   now,
			Metric: fmt.Sprintf("%s.%s", metricQueues, queue),
			Value:  float64(n),
			Tags:   models.Tags{"bucket": bucket},
		})
	}
	return samples, nil
}

// sanitizeBucket replaces every '+' in a qshape bucket header with 'p', since
// '+' is not a valid tag value character for the remote time-series store.
func sanitizeBucket(header string) string {
	return strings.ReplaceAll(header, "+", "p")
}

func (c *Collector) Shutdown() {}

func (c *Collector) TickInterval() int { return 1 }
