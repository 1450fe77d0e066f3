// Package config loads the rs-collector TOML configuration file and
// resolves it into the per-collector configuration structs the rest of the
// application consumes.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/lukaspustina/rs-collector/models"
)

// GaleraConfig configures one Galera/MySQL wsrep status collector instance.
type GaleraConfig struct {
	User     string
	Password string
	Socket   string
	Host     string
}

// HasIpAddrConfig lists the IPv4 addresses to check against local
// interfaces.
type HasIpAddrConfig struct {
	Ipv4 []string
}

// JvmConfig configures one JVM process to sample GC stats from via
// jps/jstat.
type JvmConfig struct {
	Command string
	Name    string
}

// MongoConfig configures one MongoDB replica set member to poll.
type MongoConfig struct {
	Name     string
	User     string
	Password string
	Host     string
	Port     int
}

// PostfixConfig enables the Postfix mail queue collector. It carries no
// fields of its own; its presence in the config file is the toggle.
type PostfixConfig struct{}

// MegaraidConfig enables the MegaRAID physical disk collector.
type MegaraidConfig struct {
	// TickInterval overrides the default per-tick collection cadence.
	// Default 1.
	TickInterval int
	// MegacliCommand is the path to the MegaCli64 binary. Default
	// "/opt/MegaRAID/MegaCli/MegaCli64".
	MegacliCommand string
	// Adapter selects which RAID adapter to query; 0 means "ALL".
	Adapter int
}

// NetIfConfig configures one SNMP-polled host for network interface
// counters. This collector is not present in the original implementation;
// it is added here to give the agent's own domain (network interfaces) a
// concrete metric source.
type NetIfConfig struct {
	Host       string
	Port       int
	Community  string
	Interfaces []int
}

// Config is the top-level, fully parsed rs-collector configuration.
type Config struct {
	// Host is the remote time-series endpoint, e.g. "http://bosun:8070".
	Host string
	// Hostname is the value injected into every sample's "host" tag.
	Hostname string
	// Tags are merged into every sample after the host tag.
	Tags map[string]string
	// DontSend disables actual network transmission to Host.
	DontSend bool

	Galera    *GaleraConfig
	HasIpAddr *HasIpAddrConfig
	Jvm       []JvmConfig
	Mongo     []MongoConfig
	Postfix   *PostfixConfig
	Megaraid  *MegaraidConfig
	NetIf     []NetIfConfig

	// ReinitBackoffSec is the pause, in seconds, before a collector's Init
	// is retried after a CollectionError. Default 10.
	ReinitBackoffSec int
	// EmitterRetries is the HTTP retry count on a 5xx/connection error.
	// Default 3.
	EmitterRetries int
	// EmitterTimeoutSec is the per-request HTTP timeout, in seconds.
	// Default 3.
	EmitterTimeoutSec int
	// EmitterQueueCap bounds the emitter's outbound sample queue. Default
	// 100000.
	EmitterQueueCap int
}

// Default returns the configuration used when no config file is found,
// matching the original implementation's Default impl: localhost:8070,
// hostname "localhost", no tags, every optional collector disabled.
func Default() Config {
	return Config{
		Host:              "localhost:8070",
		Hostname:          "localhost",
		Tags:              map[string]string{},
		DontSend:          false,
		ReinitBackoffSec:  10,
		EmitterRetries:    3,
		EmitterTimeoutSec: 3,
		EmitterQueueCap:   100_000,
	}
}

// Load reads and parses the TOML file at path. If the file does not exist,
// Default() is returned rather than an error, matching the CLI's
// "missing config file falls back to defaults" behavior.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	withDefaults(&cfg)
	return cfg, nil
}

// withDefaults fills zero-value ambient fields that DecodeFile may have left
// unset if a loaded file started from Default() but explicitly zeroed a
// field, e.g. by setting ReinitBackoffSec = 0 to mean "unset" rather than
// "no backoff". TOML has no notion of "absent int", so 0 always means
// "use the default" for these four.
func withDefaults(cfg *Config) {
	if cfg.ReinitBackoffSec <= 0 {
		cfg.ReinitBackoffSec = 10
	}
	if cfg.EmitterRetries <= 0 {
		cfg.EmitterRetries = 3
	}
	if cfg.EmitterTimeoutSec <= 0 {
		cfg.EmitterTimeoutSec = 3
	}
	if cfg.EmitterQueueCap <= 0 {
		cfg.EmitterQueueCap = 100_000
	}
	if cfg.Tags == nil {
		cfg.Tags = map[string]string{}
	}
}

// TagsAsModel converts the parsed Tags map into models.Tags.
func (c Config) TagsAsModel() models.Tags {
	return models.Tags(c.Tags)
}
