package detect

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
)

// ChangeDetector remembers the content hash of the most recently observed
// payload so that a change is reported at most once. SHA-1 is used purely
// for collision avoidance, not security.
type ChangeDetector struct {
	mu       sync.Mutex
	lastHash string
}

// NewChangeDetector returns a detector with no baseline; the first payload
// it sees always registers as changed.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// HasChanged hashes payload and compares it to the previous observation.
// The compare-then-update is atomic with respect to concurrent callers.
func (c *ChangeDetector) HasChanged(payload []byte) bool {
	sum := sha1.Sum(payload)
	h := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()

	if h == c.lastHash {
		return false
	}
	c.lastHash = h
	return true
}

// Reset clears the stored hash so the next payload registers as changed.
// Used for test isolation and explicit re-baselining.
func (c *ChangeDetector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHash = ""
}
