// Package utils holds small standalone helpers shared by collectors that
// don't warrant their own package.
package utils

import (
	"fmt"
	"strconv"
)

// UUIDToDecimal converts the trailing 12 hex digits of a UUID (its node
// segment) to a decimal integer. Used by collectors that encode identity
// information as a UUID suffix.
func UUIDToDecimal(uuid string) (int64, error) {
	if len(uuid) < 24 {
		return 0, fmt.Errorf("utils: uuid %q too short", uuid)
	}
	suffix := uuid[24:]
	return strconv.ParseInt(suffix, 16, 64)
}
