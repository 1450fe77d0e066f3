package emitter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lukaspustina/rs-collector/models"
)

func TestSendSampleInjectsHostAndDefaultTags(t *testing.T) {
	var mu sync.Mutex
	var got putDatum

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := New(Config{
		Host:        srv.URL,
		Hostname:    "web01",
		DefaultTags: models.Tags{"env": "prod"},
	}, nil)

	err := e.sendSample(models.Sample{
		Time:   time.Unix(1000, 0),
		Metric: "test.metric",
		Value:  42,
		Tags:   models.Tags{"custom": "x"},
	})
	if err != nil {
		t.Fatalf("sendSample() returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Tags["host"] != "web01" {
		t.Errorf("tags[host] = %q, want web01", got.Tags["host"])
	}
	if got.Tags["env"] != "prod" {
		t.Errorf("tags[env] = %q, want prod", got.Tags["env"])
	}
	if got.Tags["custom"] != "x" {
		t.Errorf("tags[custom] = %q, want x", got.Tags["custom"])
	}
	if got.Value != "42" {
		t.Errorf("value = %q, want 42", got.Value)
	}
}

func TestSubmitMetadataOncePerMetric(t *testing.T) {
	var count int
	var mu sync.Mutex
	var got []metadataPutEntry

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		count++
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := New(Config{Host: srv.URL, Hostname: "web01"}, nil)
	md := models.Metadata{Metric: "test.metric", Rate: models.RateGauge, Unit: "B/s", Description: "d"}

	e.SubmitMetadata(md)
	e.SubmitMetadata(md)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("metadata POSTed %d times, want 1", count)
	}

	if len(got) != 3 {
		t.Fatalf("metadata body has %d entries, want 3 (rate, unit, desc)", len(got))
	}
	for _, entry := range got {
		if entry.Metric != "test.metric" {
			t.Errorf("entry.Metric = %q, want test.metric", entry.Metric)
		}
	}
	if got[0].Name != "rate" || got[0].Value != "gauge" {
		t.Errorf("got[0] = %+v, want Name=rate Value=gauge", got[0])
	}
	if got[1].Name != "unit" || got[1].Value != "B/s" {
		t.Errorf("got[1] = %+v, want Name=unit Value=B/s", got[1])
	}
	if got[2].Name != "desc" || got[2].Value != "d" {
		t.Errorf("got[2] = %+v, want Name=desc Value=d", got[2])
	}

	// Raw JSON keys must be capitalized per the Bosun-compatible wire format.
	raw, err := json.Marshal(metadataPutEntry{Metric: "m", Name: "rate", Value: "gauge"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"Metric", "Name", "Value"} {
		if _, ok := asMap[key]; !ok {
			t.Errorf("wire JSON missing capitalized key %q: %s", key, raw)
		}
	}
}

func TestSubmitMetadataDontSendSkipsHTTP(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := New(Config{Host: srv.URL, Hostname: "web01", DontSend: true}, nil)
	e.SubmitMetadata(models.Metadata{Metric: "test.metric"})

	if called {
		t.Error("expected no HTTP call when DontSend is true")
	}
}

func TestFlushDrainsQueue(t *testing.T) {
	e := New(Config{Host: "http://unused.invalid", Hostname: "web01", DontSend: true}, nil)
	e.SubmitSample(models.Sample{Time: time.Now(), Metric: "a", Value: 1, Tags: models.Tags{}})
	e.SubmitSample(models.Sample{Time: time.Now(), Metric: "b", Value: 2, Tags: models.Tags{}})

	e.flush()

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) != 0 {
		t.Errorf("queue not drained after flush: %d remaining", len(e.queue))
	}
}

func TestSubmitSampleDropsOldestAtCapacity(t *testing.T) {
	e := New(Config{Host: "http://unused.invalid", QueueCap: 2, DontSend: true}, nil)
	e.SubmitSample(models.Sample{Metric: "first"})
	e.SubmitSample(models.Sample{Metric: "second"})
	e.SubmitSample(models.Sample{Metric: "third"})

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) != 2 {
		t.Fatalf("queue length = %d, want 2", len(e.queue))
	}
	if e.queue[0].Metric != "second" {
		t.Errorf("oldest sample not dropped: queue[0] = %q, want second", e.queue[0].Metric)
	}
}
