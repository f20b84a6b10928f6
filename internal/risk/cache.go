package risk

import (
	"sync"
	"time"
)

// DefaultEntryTTL bounds how long a prior attempt stays relevant for
// inter-attempt distance and speed checks.
const DefaultEntryTTL = 30 * time.Minute

// cleanupInterval is how often expired entries are swept.
const cleanupInterval = 5 * time.Minute

// LastAttempt is the single cached prior attempt retained per user. Each
// verification overwrites it; it is never an audit trail.
type LastAttempt struct {
	Latitude  float64
	Longitude float64
	DeviceID  string
	At        time.Time
}

// LocationCache is a keyed, TTL-bounded cache of the most recent attempt
// per user. It is best-effort shared state: losing it on restart only
// relaxes anti-spoofing strictness, never ledger correctness.
type LocationCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration

	stop chan struct{}
	once sync.Once
}

type cacheEntry struct {
	attempt   LastAttempt
	expiresAt time.Time
}

// NewLocationCache creates a cache with the given entry TTL and starts its
// cleanup routine. Pass DefaultEntryTTL unless tuning.
func NewLocationCache(ttl time.Duration) *LocationCache {
	c := &LocationCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get returns the cached prior attempt for the user, or false if none is
// cached or the entry expired.
func (c *LocationCache) Get(userID string) (LastAttempt, bool) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return LastAttempt{}, false
	}
	return entry.attempt, true
}

// Put overwrites the cached attempt for the user.
func (c *LocationCache) Put(userID string, attempt LastAttempt) {
	c.mu.Lock()
	c.entries[userID] = &cacheEntry{
		attempt:   attempt,
		expiresAt: attempt.At.Add(c.ttl),
	}
	c.mu.Unlock()
}

// Len returns the number of cached entries, including expired ones not yet
// swept.
func (c *LocationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop terminates the cleanup routine.
func (c *LocationCache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *LocationCache) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *LocationCache) removeExpired() {
	now := time.Now()
	c.mu.Lock()
	for userID, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, userID)
		}
	}
	c.mu.Unlock()
}
