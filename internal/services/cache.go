package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/normalize"
	"github.com/bobby-s-dev/pinkweather/internal/observability"
)

type CacheItem struct {
	Payload  normalize.ProviderPayload
	StoredAt time.Time
}

// ResponseCache holds provider payloads for the preview server. Entries are
// never evicted: once past the TTL they are stale but still served when the
// provider cannot be reached.
type ResponseCache struct {
	mu       sync.RWMutex
	items    map[string]CacheItem
	duration time.Duration
	hits     int
	misses   int
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

type CacheStats struct {
	Hits     int    `json:"hits"`
	Misses   int    `json:"misses"`
	Entries  int    `json:"entries"`
	Duration string `json:"duration"`
}

func NewResponseCache(duration time.Duration, metrics *observability.Metrics, logger *zap.Logger) *ResponseCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseCache{
		items:    make(map[string]CacheItem),
		duration: duration,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// CacheKey hashes the request parameters that identify a response.
func CacheKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Get returns the entry for key and whether it is still fresh. A stale
// entry is returned with ok true and fresh false and counts as a miss.
func (c *ResponseCache) Get(key string) (item CacheItem, fresh, ok bool) {
	c.mu.RLock()
	item, ok = c.items[key]
	c.mu.RUnlock()

	fresh = ok && c.now().Sub(item.StoredAt) < c.duration

	c.mu.Lock()
	if fresh {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if fresh {
		c.metrics.CacheHit()
	} else {
		c.metrics.CacheMiss()
	}
	return item, fresh, ok
}

func (c *ResponseCache) Set(key string, p normalize.ProviderPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.now()
	c.items[key] = CacheItem{Payload: p, StoredAt: stored}

	c.logger.Debug("Provider response cached",
		zap.String("key", key[:12]),
		zap.Time("fresh_until", stored.Add(c.duration)))
}

func (c *ResponseCache) GetStats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		Entries:  len(c.items),
		Duration: c.duration.String(),
	}
}
