package galera

import (
	"testing"

	"github.com/lukaspustina/rs-collector/config"
)

func TestClusterStatusValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"Primary", 0},
		{"primary", 0},
		{"non-Primary", 1},
		{"", 1},
	}
	for _, tc := range tests {
		if got := clusterStatusValue(tc.in); got != tc.want {
			t.Errorf("clusterStatusValue(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEvsStateValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"OPERATIONAL", 0},
		{"operational", 0},
		{"NON_PRIM", 1},
	}
	for _, tc := range tests {
		if got := evsStateValue(tc.in); got != tc.want {
			t.Errorf("evsStateValue(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewId(t *testing.T) {
	cfg := config.GaleraConfig{User: "root", Socket: "/var/run/mysqld/mysqld.sock"}
	c := New(cfg)
	want := "galera#root@/var/run/mysqld/mysqld.sock"
	if string(c.Id()) != want {
		t.Errorf("Id() = %q, want %q", c.Id(), want)
	}
}
