package megaraid

import (
	"testing"

	"github.com/lukaspustina/rs-collector/config"
)

func TestFirmwareStates(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Online", 0},
		{"Online, Spun Up", 0},
		{"Online, Spun Down", 1},
		{"Hotspare, Spun up", 2},
		{"Hotspare, Spun down", 3},
		{"Unconfigured(good)", 4},
		{"Unconfigured(good), Spun down", 5},
		{"Unconfigured(bad)", 6},
		{"Rebuild", 7},
		{"not Online", 8},
		{"Failed", 9},
		{"None", 10},
	}
	for _, tc := range tests {
		got, ok := firmwareStates[tc.in]
		if !ok {
			t.Errorf("firmwareStates[%q] missing", tc.in)
			continue
		}
		if got != tc.want {
			t.Errorf("firmwareStates[%q] = %d, want %d", tc.in, got, tc.want)
		}
	}

	if _, ok := firmwareStates["Unknown State"]; ok {
		t.Error("firmwareStates should not contain unrecognized states")
	}
}

func TestParseInquiryData(t *testing.T) {
	manu, model, serial, ok := parseInquiryData("SEAGATE ST900MM0006 S3K0A8WN")
	if !ok || manu != "SEAGATE" || model != "ST900MM0006" || serial != "S3K0A8WN" {
		t.Errorf("parseInquiryData normal case = (%q, %q, %q, %v)", manu, model, serial, ok)
	}

	manu, model, serial, ok = parseInquiryData("S3K0A8WNINTEL SSDSC2BB120G4 ")
	if !ok || manu != "INTEL" || model != "SSDSC2BB120G4" || serial != "S3K0A8WN" {
		t.Errorf("parseInquiryData intel case = (%q, %q, %q, %v)", manu, model, serial, ok)
	}

	if _, _, _, ok := parseInquiryData("too many parts here now"); ok {
		t.Error("parseInquiryData should reject unexpected field counts")
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(config.MegaraidConfig{})
	if c.command != defaultBinary {
		t.Errorf("command = %q, want %q", c.command, defaultBinary)
	}
	if c.adapter != paramAllAdapters {
		t.Errorf("adapter = %q, want %q", c.adapter, paramAllAdapters)
	}
	if c.tickInterval != 1 {
		t.Errorf("tickInterval = %d, want 1", c.tickInterval)
	}
}
