// Package dedup drops QoS1 redeliveries by remembering message keys for a TTL.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Deduper remembers message keys for a TTL so redeliveries can be dropped.
type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
	now  func() time.Time
}

// New returns a Deduper keeping at most max keys for ttl each. Zero values
// select 10 minutes and 10000 keys.
func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max), now: time.Now}
}

// KeyOf returns the key of a payload without an explicit message id.
func KeyOf(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ShouldProcess reports whether id was not seen within the TTL and records it.
// An empty id is always processed.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if until, dup := d.seen[id]; dup && until.After(now) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.shrink(now)
	}
	return true
}

// shrink forgets expired keys, then the keys closest to expiry until the
// set fits max again.
func (d *Deduper) shrink(now time.Time) {
	var oldest string
	var oldestUntil time.Time
	for k, until := range d.seen {
		if !until.After(now) {
			delete(d.seen, k)
			continue
		}
		if oldest == "" || until.Before(oldestUntil) {
			oldest, oldestUntil = k, until
		}
	}
	if len(d.seen) > d.max && oldest != "" {
		delete(d.seen, oldest)
	}
}

// Len returns the number of remembered keys.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
