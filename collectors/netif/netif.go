// Package netif samples per-interface network throughput and operational
// status from a host's SNMP agent, converting raw Counter32 octet counters
// into byte-per-second rates.
//
// This collector has no counterpart in the original implementation; it is
// added to give the agent a metric source in its own domain (network
// interface telemetry) alongside the ported application-specific collectors.
package netif

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/lukaspustina/rs-collector/config"
	"github.com/lukaspustina/rs-collector/models"
	"github.com/lukaspustina/rs-collector/producer/metrics"
)

const (
	metricIn     = "netif.bytes.in"
	metricOut    = "netif.bytes.out"
	metricStatus = "netif.oper.status"

	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidIfDescr     = "1.3.6.1.2.1.2.2.1.2"
	oidIfOperState = "1.3.6.1.2.1.2.2.1.8"
	oidIfInOctets  = "1.3.6.1.2.1.2.2.1.10"
	oidIfOutOctets = "1.3.6.1.2.1.2.2.1.16"

	ifOperStatusUp = 1

	// staleCounterMaxAge bounds how long a counter entry survives without a
	// fresh observation before Purge reclaims it, e.g. after an interface is
	// removed from a device's config and stops being discovered.
	staleCounterMaxAge = 10 * time.Minute
)

// Collector samples ifInOctets/ifOutOctets/ifOperStatus for a set of
// interface indexes on one SNMP-speaking host. An empty Interfaces list
// means "discover every interface by walking ifDescr".
type Collector struct {
	cfg     config.NetIfConfig
	id      models.Id
	session *gosnmp.GoSNMP
	state   *metrics.CounterState

	// discovered tracks the interface indices seen on the previous Collect,
	// so an index that disappears (e.g. a removed NIC) has its counter state
	// evicted immediately instead of waiting out staleCounterMaxAge.
	discovered map[int]struct{}
}

// New constructs a Collector for cfg. Init must be called before Collect.
func New(cfg config.NetIfConfig) *Collector {
	port := cfg.Port
	if port == 0 {
		port = 161
	}
	community := cfg.Community
	if community == "" {
		community = "public"
	}
	cfg.Port = port
	cfg.Community = community

	return &Collector{
		cfg:   cfg,
		id:    models.Id(fmt.Sprintf("netif#%s@%s:%d", community, cfg.Host, port)),
		state: metrics.NewCounterState(),
	}
}

// CreateInstances builds one Collector per configured SNMP target.
func CreateInstances(cfg *config.Config) []*Collector {
	out := make([]*Collector, 0, len(cfg.NetIf))
	for _, n := range cfg.NetIf {
		out = append(out, New(n))
	}
	return out
}

func (c *Collector) Id() models.Id { return c.id }

// Init opens a gosnmp session (adapted from the connection setup in
// poller/session.go) and verifies it with a sysDescr GET.
func (c *Collector) Init() error {
	session := &gosnmp.GoSNMP{
		Target:    c.cfg.Host,
		Port:      uint16(c.cfg.Port),
		Community: c.cfg.Community,
		Version:   gosnmp.Version2c,
		Timeout:   3 * time.Second,
		Retries:   1,
	}
	if err := session.Connect(); err != nil {
		return fmt.Errorf("netif: connect %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}
	if _, err := session.Get([]string{oidSysDescr}); err != nil {
		_ = session.Conn.Close()
		return fmt.Errorf("netif: verify %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}

	if c.session != nil && c.session.Conn != nil {
		_ = c.session.Conn.Close()
	}
	c.session = session
	return nil
}

func (c *Collector) Metadata() []models.Metadata {
	return []models.Metadata{
		{
			Metric:      metricIn,
			Rate:        models.RateGauge,
			Unit:        "B/s",
			Description: "Inbound byte rate for the interface, derived from ifInOctets.",
		},
		{
			Metric:      metricOut,
			Rate:        models.RateGauge,
			Unit:        "B/s",
			Description: "Outbound byte rate for the interface, derived from ifOutOctets.",
		},
		{
			Metric:      metricStatus,
			Rate:        models.RateGauge,
			Unit:        "",
			Description: "1 if ifOperStatus is up, 0 otherwise.",
		},
	}
}

func (c *Collector) Collect() ([]models.Sample, error) {
	indices, err := c.interfaceIndices()
	if err != nil {
		return nil, fmt.Errorf("netif: %s: %w", c.id, err)
	}

	now := time.Now()
	var samples []models.Sample

	c.evictRemovedInterfaces(indices)
	c.state.Purge(staleCounterMaxAge, now)

	for _, idx := range indices {
		name, err := c.getString(fmt.Sprintf("%s.%d", oidIfDescr, idx))
		if err != nil {
			return nil, fmt.Errorf("netif: %s ifDescr.%d: %w", c.id, idx, err)
		}

		status, err := c.getInt(fmt.Sprintf("%s.%d", oidIfOperState, idx))
		if err != nil {
			return nil, fmt.Errorf("netif: %s ifOperStatus.%d: %w", c.id, idx, err)
		}

		in, err := c.getCounter(fmt.Sprintf("%s.%d", oidIfInOctets, idx))
		if err != nil {
			return nil, fmt.Errorf("netif: %s ifInOctets.%d: %w", c.id, idx, err)
		}
		out, err := c.getCounter(fmt.Sprintf("%s.%d", oidIfOutOctets, idx))
		if err != nil {
			return nil, fmt.Errorf("netif: %s ifOutOctets.%d: %w", c.id, idx, err)
		}

		tags := models.Tags{"iface": name, "index": strconv.Itoa(idx)}

		statusValue := 0.0
		if status == ifOperStatusUp {
			statusValue = 1.0
		}
		samples = append(samples, models.Sample{Time: now, Metric: metricStatus, Value: statusValue, Tags: tags.Clone()})

		instance := strconv.Itoa(idx)
		inKey := metrics.CounterKey{Device: c.cfg.Host, Attribute: metricIn, Instance: instance}
		if d := c.state.Delta(inKey, in, now, metrics.WrapForSyntax("Counter32")); d.Valid {
			rate := float64(d.Delta) / d.Elapsed.Seconds()
			samples = append(samples, models.Sample{Time: now, Metric: metricIn, Value: rate, Tags: tags.Clone()})
		}

		outKey := metrics.CounterKey{Device: c.cfg.Host, Attribute: metricOut, Instance: instance}
		if d := c.state.Delta(outKey, out, now, metrics.WrapForSyntax("Counter32")); d.Valid {
			rate := float64(d.Delta) / d.Elapsed.Seconds()
			samples = append(samples, models.Sample{Time: now, Metric: metricOut, Value: rate, Tags: tags.Clone()})
		}
	}

	return samples, nil
}

// evictRemovedInterfaces drops counter state for any interface index that
// was discovered last Collect but is absent this time, so a removed NIC
// doesn't linger in memory until staleCounterMaxAge catches up with it.
func (c *Collector) evictRemovedInterfaces(current []int) {
	seen := make(map[int]struct{}, len(current))
	for _, idx := range current {
		seen[idx] = struct{}{}
	}

	for idx := range c.discovered {
		if _, ok := seen[idx]; ok {
			continue
		}
		instance := strconv.Itoa(idx)
		c.state.Remove(metrics.CounterKey{Device: c.cfg.Host, Attribute: metricIn, Instance: instance})
		c.state.Remove(metrics.CounterKey{Device: c.cfg.Host, Attribute: metricOut, Instance: instance})
	}

	c.discovered = seen
}

// interfaceIndices returns the configured interface indices, or discovers
// every interface by walking ifDescr if none were configured.
func (c *Collector) interfaceIndices() ([]int, error) {
	if len(c.cfg.Interfaces) > 0 {
		return c.cfg.Interfaces, nil
	}

	var indices []int
	err := c.session.BulkWalk(oidIfDescr, func(pdu gosnmp.SnmpPDU) error {
		idx, err := lastOIDSegment(pdu.Name)
		if err != nil {
			return nil
		}
		indices = append(indices, idx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover interfaces: %w", err)
	}
	return indices, nil
}

func lastOIDSegment(oid string) (int, error) {
	for i := len(oid) - 1; i >= 0; i-- {
		if oid[i] == '.' {
			return strconv.Atoi(oid[i+1:])
		}
	}
	return strconv.Atoi(oid)
}

func (c *Collector) getString(oid string) (string, error) {
	result, err := c.session.Get([]string{oid})
	if err != nil {
		return "", err
	}
	if len(result.Variables) != 1 {
		return "", fmt.Errorf("unexpected response length for %s", oid)
	}
	switch v := result.Variables[0].Value.(type) {
	case []byte:
		return string(v), nil
	case string:
		return v, nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func (c *Collector) getInt(oid string) (int, error) {
	result, err := c.session.Get([]string{oid})
	if err != nil {
		return 0, err
	}
	if len(result.Variables) != 1 {
		return 0, fmt.Errorf("unexpected response length for %s", oid)
	}
	return int(gosnmp.ToBigInt(result.Variables[0].Value).Int64()), nil
}

func (c *Collector) getCounter(oid string) (uint64, error) {
	result, err := c.session.Get([]string{oid})
	if err != nil {
		return 0, err
	}
	if len(result.Variables) != 1 {
		return 0, fmt.Errorf("unexpected response length for %s", oid)
	}
	return gosnmp.ToBigInt(result.Variables[0].Value).Uint64(), nil
}

func (c *Collector) Shutdown() {
	if c.session != nil && c.session.Conn != nil {
		_ = c.session.Conn.Close()
		c.session = nil
	}
}

// TickInterval samples every other scheduler tick: interface counters
// change slowly relative to the default 15s tick.
func (c *Collector) TickInterval() int { return 2 }
