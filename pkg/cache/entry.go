// Package cache provides an optional Redis-backed cache for status payloads,
// keyed by account identifier. It lets repeated batch runs skip remote calls
// for identifiers queried recently.
package cache

import (
	"time"
)

// Entry is a cached status payload for one identifier.
type Entry struct {
	// Payload is the raw JSON body returned by the status endpoint.
	Payload []byte `json:"payload"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry builds an entry from a response body with the given TTL.
func NewEntry(payload []byte, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Payload:  payload,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
