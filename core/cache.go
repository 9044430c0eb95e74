package core

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// ResultCache memoizes structured summaries by content fingerprint so
// repeated requests for unchanged input avoid redundant model calls.
// Implementations must tolerate concurrent readers and writers; a failing
// backend degrades to a miss, never an error.
type ResultCache interface {
	Get(ctx context.Context, key string) (*SummaryData, bool)
	Put(ctx context.Context, key string, value *SummaryData)
}

// CacheKey builds the deterministic fingerprint of one summarization unit:
// normalized text, target language, model identifier and prompt version.
func CacheKey(text, language, model, promptVersion string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := md5.Sum([]byte(normalized + "\x00" + language + "\x00" + model + "\x00" + promptVersion))
	return hex.EncodeToString(sum[:])
}

// CacheMetrics counts cache traffic.
type CacheMetrics struct {
	mu        sync.RWMutex
	Hits      int64
	Misses    int64
	Evictions int64
}

// Snapshot returns a consistent copy of the counters.
func (m *CacheMetrics) Snapshot() (hits, misses, evictions int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Hits, m.Misses, m.Evictions
}

type memoryCacheEntry struct {
	value      *SummaryData
	createdAt  time.Time
	lastAccess time.Time
}

// MemoryCache is the default in-process ResultCache: an RWMutex-guarded index
// with TTL expiry and least-recently-accessed eviction above capacity.
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]*memoryCacheEntry
	ttl      time.Duration
	capacity int
	metrics  CacheMetrics
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a memory cache. ttl <= 0 disables expiry,
// capacity <= 0 disables the size bound. A background task sweeps expired
// entries until Stop is called.
func NewMemoryCache(ttl time.Duration, capacity int) *MemoryCache {
	c := &MemoryCache{
		entries:  make(map[string]*memoryCacheEntry),
		ttl:      ttl,
		capacity: capacity,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Get returns the cached value for key, if present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) (*SummaryData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || c.expired(entry) {
		if ok {
			delete(c.entries, key)
		}
		c.metrics.mu.Lock()
		c.metrics.Misses++
		c.metrics.mu.Unlock()
		return nil, false
	}
	entry.lastAccess = time.Now()
	c.metrics.mu.Lock()
	c.metrics.Hits++
	c.metrics.mu.Unlock()
	return entry.value, true
}

// Put stores value under key. Re-putting an existing key is a no-op
// observable-wise; values for the same key are expected to be equal.
func (c *MemoryCache) Put(_ context.Context, key string, value *SummaryData) {
	if value == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &memoryCacheEntry{value: value, createdAt: now, lastAccess: now}
	if c.capacity > 0 {
		for len(c.entries) > c.capacity {
			c.evictOldestLocked()
		}
	}
}

// Len returns the current entry count.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Metrics exposes the traffic counters.
func (c *MemoryCache) Metrics() *CacheMetrics { return &c.metrics }

// Stop ends the background sweep.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *MemoryCache) expired(e *memoryCacheEntry) bool {
	return c.ttl > 0 && time.Since(e.createdAt) > c.ttl
}

func (c *MemoryCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.metrics.mu.Lock()
		c.metrics.Evictions++
		c.metrics.mu.Unlock()
	}
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if c.expired(entry) {
					delete(c.entries, key)
					c.metrics.mu.Lock()
					c.metrics.Evictions++
					c.metrics.mu.Unlock()
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}
