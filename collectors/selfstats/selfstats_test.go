package selfstats

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.2.3", 1_002_003},
		{"0.0.1", 1},
		{"2.10.0", 2_010_000},
		{"not-a-version", -1},
		{"1.2", -1},
	}
	for _, tc := range tests {
		if got := parseVersion(tc.in); got != tc.want {
			t.Errorf("parseVersion(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCollectReturnsTwoSamples(t *testing.T) {
	c := New()
	samples, err := c.Collect()
	if err != nil {
		t.Fatalf("Collect() returned error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("Collect() returned %d samples, want 2", len(samples))
	}
}
