// Package jvm samples young/old generation GC statistics from local JVM
// processes identified by jps, using jstat -gc.
package jvm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lukaspustina/rs-collector/config"
	"github.com/lukaspustina/rs-collector/models"
)

const metricGC = "jvm.gc.stats"

const (
	jpsBinary   = "/usr/bin/jps"
	jstatBinary = "/usr/bin/jstat"
	cmdTimeout  = 10 * time.Second
)

type gcField struct {
	metric      string
	rate        models.Rate
	unit        string
	description string
}

// gcFields maps jstat -gc column headers to their published metric.
var gcFields = map[string]gcField{
	"S0C":  {metricGC + ".survivor_space_0_capacity", models.RateGauge, "kB", "S0C: Current survivor space 0 capacity"},
	"S1C":  {metricGC + ".survivor_space_1_capacity", models.RateGauge, "kB", "S1C: Current survivor space 1 capacity"},
	"S0U":  {metricGC + ".survivor_space_0_utilization", models.RateGauge, "kB", "S0U: Survivor space 0 utilization"},
	"S1U":  {metricGC + ".survivor_space_1_utilization", models.RateGauge, "kB", "S1U: Survivor space 1 utilization"},
	"EC":   {metricGC + ".current_eden_space_capacity", models.RateGauge, "kB", "EC: Current eden space capacity"},
	"EU":   {metricGC + ".eden_space_utilization", models.RateGauge, "kB", "EU: Eden space utilization"},
	"OC":   {metricGC + ".current_old_space_capacity", models.RateGauge, "kB", "OC: Current old space capacity"},
	"OU":   {metricGC + ".old_space_utilization", models.RateGauge, "kB", "OU: Old space utilization"},
	"PC":   {metricGC + ".current_permanent_space_capacity", models.RateGauge, "kB", "PC: Current permanent space capacity"},
	"PU":   {metricGC + ".permanent_space_utilization", models.RateGauge, "kB", "PU: Permanent space utilization"},
	"MC":   {metricGC + ".metaspace_capacity", models.RateGauge, "kB", "MC: Metaspace capacity"},
	"MU":   {metricGC + ".metaspace_utilization", models.RateGauge, "kB", "MU: Metaspace utilization"},
	"CCSC": {metricGC + ".compressed_class_space_capacity", models.RateGauge, "kB", "CCSC: Compressed class space capacity"},
	"CCSU": {metricGC + ".compressed_class_space_used", models.RateGauge, "kB", "CCSU: Compressed class space used"},
	"YGC":  {metricGC + ".young_generation_gc_events", models.RateCounter, "Event", "YGC: Number of young generation garbage collection events"},
	"YGCT": {metricGC + ".young_generation_gc_time", models.RateCounter, "s", "YGCT: Young generation garbage collection time"},
	"FGC":  {metricGC + ".full_gc_events", models.RateCounter, "Event", "FGC: Number of full GC events"},
	"FGCT": {metricGC + ".full_gc_time", models.RateCounter, "s", "FGCT: Full garbage collection time"},
	"GCT":  {metricGC + ".total_gc_time", models.RateCounter, "s", "GCT: Total garbage collection time"},
}

// Collector matches running JVM processes against a configured set of
// class/cmdline patterns and samples jstat -gc for each match.
type Collector struct {
	id   models.Id
	jvms []config.JvmConfig
	res  []*regexp.Regexp
}

// New constructs a Collector for the given set of configured JVM patterns.
func New(jvms []config.JvmConfig) *Collector {
	return &Collector{id: "jvm", jvms: jvms}
}

// CreateInstances builds zero or one Collector, mirroring
// collectors::jvm::create_instances.
func CreateInstances(cfg *config.Config) []*Collector {
	if len(cfg.Jvm) == 0 {
		return nil
	}
	return []*Collector{New(cfg.Jvm)}
}

func (c *Collector) Id() models.Id { return c.id }

// Init verifies jps and jstat are present, and compiles every configured
// Command pattern once so Collect never fails on a malformed regex.
func (c *Collector) Init() error {
	if err := runHelp(jpsBinary); err != nil {
		return fmt.Errorf("jvm: %w", err)
	}
	if err := runHelp(jstatBinary); err != nil {
		return fmt.Errorf("jvm: %w", err)
	}

	res := make([]*regexp.Regexp, len(c.jvms))
	for i, jc := range c.jvms {
		re, err := regexp.Compile(jc.Command)
		if err != nil {
			return fmt.Errorf("jvm: compile pattern %q for %q: %w", jc.Command, jc.Name, err)
		}
		res[i] = re
	}
	c.res = res
	return nil
}

func runHelp(bin string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()
	if err := exec.CommandContext(ctx, bin, "-help").Run(); err != nil {
		return fmt.Errorf("%s not runnable: %w", bin, err)
	}
	return nil
}

func (c *Collector) Metadata() []models.Metadata {
	out := make([]models.Metadata, 0, len(gcFields))
	for _, f := range gcFields {
		out = append(out, models.Metadata{Metric: f.metric, Rate: f.rate, Unit: f.unit, Description: f.description})
	}
	return out
}

type jvmProcess struct {
	pid     int
	class   string
	cmdline string
}

func (c *Collector) Collect() ([]models.Sample, error) {
	procs, err := c.getJps()
	if err != nil {
		return nil, err
	}

	var samples []models.Sample
	for _, p := range procs {
		name, ok := c.identify(p)
		if !ok {
			continue
		}
		s, err := c.sampleGC(p.pid, name)
		if err != nil {
			// A single failed JVM process does not abort the rest of the
			// scan.
			continue
		}
		samples = append(samples, s...)
	}
	return samples, nil
}

func (c *Collector) identify(p jvmProcess) (string, bool) {
	for i, re := range c.res {
		if re.MatchString(p.class) || re.MatchString(p.cmdline) {
			return c.jvms[i].Name, true
		}
	}
	return "", false
}

func (c *Collector) getJps() ([]jvmProcess, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, jpsBinary, "-vl")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("jvm: jps: %w", err)
	}

	var procs []jvmProcess
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		cols := strings.Fields(scanner.Text())
		if len(cols) < 2 {
			return nil, fmt.Errorf("jvm: unexpected jps output line %q", scanner.Text())
		}
		pid, err := strconv.Atoi(cols[0])
		if err != nil {
			return nil, fmt.Errorf("jvm: parse jps pid %q: %w", cols[0], err)
		}
		procs = append(procs, jvmProcess{pid: pid, class: cols[1], cmdline: strings.Join(cols[2:], " ")})
	}
	return procs, nil
}

func (c *Collector) sampleGC(pid int, jvmName string) ([]models.Sample, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, jstatBinary, "-gc", strconv.Itoa(pid))
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("jvm: jstat pid %d: %w", pid, err)
	}

	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	if len(lines) != 2 {
		return nil, fmt.Errorf("jvm: unexpected jstat output for pid %d", pid)
	}
	names := strings.Fields(lines[0])
	values := strings.Fields(lines[1])

	now := time.Now()
	var samples []models.Sample
	for i, v := range values {
		if i >= len(names) {
			break
		}
		field, ok := gcFields[names[i]]
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("jvm: parse %s=%q for pid %d: %w", names[i], v, pid, err)
		}
		samples = append(samples, models.Sample{
			Time:   now,
			Metric: field.metric,
			Value:  value,
			Tags:   models.Tags{"jvm_name": jvmName},
		})
	}
	return samples, nil
}

func (c *Collector) Shutdown() {}

func (c *Collector) TickInterval() int { return 1 }
