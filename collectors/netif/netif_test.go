package netif

import (
	"testing"
	"time"

	"github.com/lukaspustina/rs-collector/config"
	"github.com/lukaspustina/rs-collector/producer/metrics"
)

func TestLastOIDSegment(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1.3.6.1.2.1.2.2.1.2.1", 1},
		{"1.3.6.1.2.1.2.2.1.2.42", 42},
		{"7", 7},
	}
	for _, tc := range tests {
		got, err := lastOIDSegment(tc.in)
		if err != nil {
			t.Fatalf("lastOIDSegment(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("lastOIDSegment(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(config.NetIfConfig{Host: "10.0.0.1"})
	if c.cfg.Port != 161 {
		t.Errorf("Port = %d, want 161", c.cfg.Port)
	}
	if c.cfg.Community != "public" {
		t.Errorf("Community = %q, want public", c.cfg.Community)
	}
	want := "netif#public@10.0.0.1:161"
	if string(c.Id()) != want {
		t.Errorf("Id() = %q, want %q", c.Id(), want)
	}
}

func TestTickIntervalIsTwo(t *testing.T) {
	c := New(config.NetIfConfig{Host: "10.0.0.1"})
	if c.TickInterval() != 2 {
		t.Errorf("TickInterval() = %d, want 2", c.TickInterval())
	}
}

func TestEvictRemovedInterfacesDropsCounterState(t *testing.T) {
	c := New(config.NetIfConfig{Host: "10.0.0.1"})

	inKey := metrics.CounterKey{Device: "10.0.0.1", Attribute: metricIn, Instance: "1"}
	c.state.Delta(inKey, 1000, time.Unix(0, 0), metrics.WrapForSyntax("Counter32"))

	c.evictRemovedInterfaces([]int{1, 2}) // interface 1 still present: no eviction
	if r := c.state.Delta(inKey, 1500, time.Unix(10, 0), metrics.WrapForSyntax("Counter32")); !r.Valid {
		t.Fatal("counter state for a still-present interface should survive eviction")
	}

	c.state.Delta(inKey, 1500, time.Unix(10, 0), metrics.WrapForSyntax("Counter32"))
	c.evictRemovedInterfaces([]int{2}) // interface 1 gone: should be evicted
	if r := c.state.Delta(inKey, 1600, time.Unix(20, 0), metrics.WrapForSyntax("Counter32")); r.Valid {
		t.Error("counter state for a removed interface should have been evicted, making this a first observation")
	}
}
