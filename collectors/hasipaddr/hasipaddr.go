// Package hasipaddr checks whether a set of configured IPv4 addresses are
// bound to a local network interface.
package hasipaddr

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lukaspustina/rs-collector/config"
	"github.com/lukaspustina/rs-collector/models"
)

const metric = "os.net.has_ipv4s"

// Collector checks a fixed list of IPv4 addresses against the host's local
// interfaces on every tick.
type Collector struct {
	ipv4 []string
	id   models.Id
}

// New constructs a Collector for the given list of IPv4 addresses.
func New(ipv4 []string) *Collector {
	return &Collector{
		ipv4: ipv4,
		id:   models.Id(fmt.Sprintf("hasipaddr#%s", strings.Join(ipv4, ","))),
	}
}

// CreateInstances builds zero or one Collector, mirroring
// collectors::hasipaddr::create_instances.
func CreateInstances(cfg *config.Config) []*Collector {
	if cfg.HasIpAddr == nil {
		return nil
	}
	return []*Collector{New(cfg.HasIpAddr.Ipv4)}
}

func (c *Collector) Id() models.Id { return c.id }

func (c *Collector) Init() error { return nil }

func (c *Collector) Metadata() []models.Metadata {
	return []models.Metadata{
		{
			Metric:      metric,
			Rate:        models.RateGauge,
			Unit:        "",
			Description: "1 if the tagged IPv4 address is bound to a local interface, else 0.",
		},
	}
}

func (c *Collector) Collect() ([]models.Sample, error) {
	local, err := localIPv4Set()
	if err != nil {
		return nil, fmt.Errorf("hasipaddr: %w", err)
	}

	now := time.Now()
	samples := make([]models.Sample, 0, len(c.ipv4))
	for _, addr := range c.ipv4 {
		value := 0.0
		if _, ok := local[addr]; ok {
			value = 1.0
		}
		samples = append(samples, models.Sample{
			Time:   now,
			Metric: metric,
			Value:  value,
			Tags:   models.Tags{"ipv4": addr},
		})
	}
	return samples, nil
}

// localIPv4Set returns the set of IPv4 addresses bound to any local network
// interface, as plain dotted-quad strings.
func localIPv4Set() (map[string]struct{}, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("enumerate local addresses: %w", err)
	}

	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		set[ip4.String()] = struct{}{}
	}
	return set, nil
}

func (c *Collector) Shutdown() {}

func (c *Collector) TickInterval() int { return 1 }
