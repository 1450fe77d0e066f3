package jvm

import (
	"regexp"
	"testing"

	"github.com/lukaspustina/rs-collector/config"
)

func TestIdentify(t *testing.T) {
	jvms := []config.JvmConfig{
		{Command: "KafkaServer", Name: "kafka"},
		{Command: "cassandra", Name: "cassandra"},
	}
	c := &Collector{jvms: jvms, res: []*regexp.Regexp{
		regexp.MustCompile(jvms[0].Command),
		regexp.MustCompile(jvms[1].Command),
	}}

	name, ok := c.identify(jvmProcess{pid: 1, class: "kafka.Kafka", cmdline: "KafkaServer /etc/kafka.properties"})
	if !ok || name != "kafka" {
		t.Errorf("identify() = (%q, %v), want (kafka, true)", name, ok)
	}

	_, ok = c.identify(jvmProcess{pid: 2, class: "com.example.Unrelated"})
	if ok {
		t.Error("identify() matched an unconfigured process")
	}
}

func TestGCFieldsCoverage(t *testing.T) {
	for _, name := range []string{"S0C", "EU", "YGC", "GCT"} {
		if _, ok := gcFields[name]; !ok {
			t.Errorf("gcFields missing %q", name)
		}
	}
}
