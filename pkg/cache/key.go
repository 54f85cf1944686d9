package cache

import (
	"strings"
)

// Key identifies a cached status payload.
type Key struct {
	// Identifier is the account identifier the payload belongs to.
	Identifier string
}

// String generates the deterministic Redis key for this entry.
// Format: statusq:status:<identifier>
func (k Key) String() string {
	return strings.Join([]string{"statusq", "status", k.Identifier}, ":")
}
