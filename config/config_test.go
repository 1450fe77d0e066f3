package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Host != "localhost:8070" {
		t.Errorf("Host = %q, want localhost:8070", cfg.Host)
	}
	if cfg.Hostname != "localhost" {
		t.Errorf("Hostname = %q, want localhost", cfg.Hostname)
	}
	if cfg.ReinitBackoffSec != 10 {
		t.Errorf("ReinitBackoffSec = %d, want 10", cfg.ReinitBackoffSec)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Host != Default().Host {
		t.Errorf("Load() on missing file = %+v, want default", cfg)
	}
}

func TestLoadParsesToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rs-collector.conf")
	body := `
Host = "bosun.example.com:8070"
Hostname = "web01"
DontSend = true

[Galera]
User = "root"
Socket = "/var/run/mysqld/mysqld.sock"

[[Mongo]]
Name = "rs0"
Host = "10.0.0.1"
Port = 27017
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Host != "bosun.example.com:8070" {
		t.Errorf("Host = %q, want bosun.example.com:8070", cfg.Host)
	}
	if !cfg.DontSend {
		t.Error("DontSend = false, want true")
	}
	if cfg.Galera == nil || cfg.Galera.User != "root" {
		t.Errorf("Galera = %+v, want User=root", cfg.Galera)
	}
	if len(cfg.Mongo) != 1 || cfg.Mongo[0].Name != "rs0" {
		t.Errorf("Mongo = %+v, want one entry named rs0", cfg.Mongo)
	}
	if cfg.ReinitBackoffSec != 10 {
		t.Errorf("ReinitBackoffSec = %d, want default 10", cfg.ReinitBackoffSec)
	}
}
