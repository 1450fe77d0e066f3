package metrics

import (
	"testing"
	"time"
)

func TestDeltaFirstObservationIsInvalid(t *testing.T) {
	s := NewCounterState()
	key := CounterKey{Device: "switch1", Attribute: "netif.bytes.in", Instance: "1"}

	r := s.Delta(key, 1000, time.Unix(0, 0), uint64(^uint32(0)))
	if r.Valid {
		t.Error("first observation should be invalid (no prior sample)")
	}
}

func TestDeltaComputesRateBetweenObservations(t *testing.T) {
	s := NewCounterState()
	key := CounterKey{Device: "switch1", Attribute: "netif.bytes.in", Instance: "1"}
	wrap := uint64(^uint32(0))

	s.Delta(key, 1000, time.Unix(0, 0), wrap)
	r := s.Delta(key, 1500, time.Unix(10, 0), wrap)

	if !r.Valid {
		t.Fatal("second observation should be valid")
	}
	if r.Delta != 500 {
		t.Errorf("Delta = %d, want 500", r.Delta)
	}
	if r.Elapsed != 10*time.Second {
		t.Errorf("Elapsed = %v, want 10s", r.Elapsed)
	}
}

func TestDeltaHandlesCounter32Wrap(t *testing.T) {
	s := NewCounterState()
	key := CounterKey{Device: "switch1", Attribute: "netif.bytes.in", Instance: "1"}
	wrap := uint64(^uint32(0))

	s.Delta(key, wrap-100, time.Unix(0, 0), wrap)
	r := s.Delta(key, 50, time.Unix(10, 0), wrap)

	if !r.Valid {
		t.Fatal("expected a valid delta across the wrap boundary")
	}
	want := uint64(100 + 50 + 1)
	if r.Delta != want {
		t.Errorf("Delta = %d, want %d", r.Delta, want)
	}
}

func TestDeltaRejectsNonAdvancingTimestamp(t *testing.T) {
	s := NewCounterState()
	key := CounterKey{Device: "switch1", Attribute: "netif.bytes.in", Instance: "1"}
	now := time.Unix(0, 0)

	s.Delta(key, 1000, now, uint64(^uint32(0)))
	r := s.Delta(key, 1500, now, uint64(^uint32(0)))

	if r.Valid {
		t.Error("equal timestamps should yield an invalid result (division-by-zero guard)")
	}
}
