package utils

import "testing"

func TestUUIDToDecimalOkay(t *testing.T) {
	uuid := "d6a51a3a-b378-11e4-924b-23b6ec126a13"

	decimal, err := UUIDToDecimal(uuid)
	if err != nil {
		t.Fatalf("UUIDToDecimal(%q) returned error: %v", uuid, err)
	}
	if decimal != 39268551649811 {
		t.Errorf("UUIDToDecimal(%q) = %d, want 39268551649811", uuid, decimal)
	}
}

func TestUUIDToDecimalTooShort(t *testing.T) {
	if _, err := UUIDToDecimal("short"); err == nil {
		t.Error("expected error for too-short uuid, got nil")
	}
}
