package hasipaddr

import "testing"

func TestNewId(t *testing.T) {
	c := New([]string{"10.0.0.1", "10.0.0.2"})
	want := "hasipaddr#10.0.0.1,10.0.0.2"
	if string(c.Id()) != want {
		t.Errorf("Id() = %q, want %q", c.Id(), want)
	}
}

func TestLocalIPv4SetContainsLoopback(t *testing.T) {
	set, err := localIPv4Set()
	if err != nil {
		t.Fatalf("localIPv4Set() returned error: %v", err)
	}
	if _, ok := set["127.0.0.1"]; !ok {
		t.Error("localIPv4Set() missing loopback address 127.0.0.1")
	}
}

func TestCollectTagsEveryConfiguredAddress(t *testing.T) {
	c := New([]string{"127.0.0.1", "203.0.113.1"})
	samples, err := c.Collect()
	if err != nil {
		t.Fatalf("Collect() returned error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("Collect() returned %d samples, want 2", len(samples))
	}

	byAddr := map[string]float64{}
	for _, s := range samples {
		byAddr[s.Tags["ipv4"]] = s.Value
	}
	if byAddr["127.0.0.1"] != 1 {
		t.Errorf("127.0.0.1 sample value = %v, want 1", byAddr["127.0.0.1"])
	}
	if byAddr["203.0.113.1"] != 0 {
		t.Errorf("203.0.113.1 sample value = %v, want 0", byAddr["203.0.113.1"])
	}
}
