package cache

import (
	"sync"
	"time"

	"valorant-live-tracker/internal/clock"
	"valorant-live-tracker/internal/metrics"

	"github.com/rs/zerolog"
)

type Category string

const (
	Ranks                 Category = "ranks"
	SeasonInfo            Category = "season_info"
	PlayerNames           Category = "player_names"
	PlayerLevel           Category = "player_level"
	MatchHistory          Category = "match_history"
	CompletedMatchDetails Category = "completed_match_details"
	PlayerStats           Category = "player_stats"
	Content               Category = "content"
)

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is a keyed store with a TTL per category. Entries are never evicted
// except by expiry or Clear, so size grows with the number of distinct
// players seen in one session.
type Cache struct {
	mu         sync.Mutex
	entries    map[Category]map[string]entry
	ttls       map[Category]time.Duration
	defaultTTL time.Duration
	clock      clock.Clock
	logger     zerolog.Logger
}

func New(defaultTTL time.Duration, clk clock.Clock, logger zerolog.Logger) *Cache {
	return &Cache{
		entries:    make(map[Category]map[string]entry),
		ttls:       make(map[Category]time.Duration),
		defaultTTL: defaultTTL,
		clock:      clk,
		logger:     logger,
	}
}

// SetTTL overrides the TTL of a single category.
func (c *Cache) SetTTL(category Category, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttls[category] = ttl
}

func (c *Cache) ttl(category Category) time.Duration {
	if ttl, ok := c.ttls[category]; ok {
		return ttl
	}
	return c.defaultTTL
}

func (c *Cache) Get(category Category, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.entries[category]
	if !ok {
		metrics.CacheMisses.WithLabelValues(string(category)).Inc()
		return nil, false
	}
	e, ok := bucket[key]
	if !ok {
		metrics.CacheMisses.WithLabelValues(string(category)).Inc()
		return nil, false
	}
	if c.clock.Now().Sub(e.storedAt) >= c.ttl(category) {
		delete(bucket, key)
		metrics.CacheMisses.WithLabelValues(string(category)).Inc()
		c.logger.Debug().Str("category", string(category)).Str("key", key).Msg("cache entry expired")
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(string(category)).Inc()
	return e.value, true
}

func (c *Cache) Set(category Category, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.entries[category]
	if !ok {
		bucket = make(map[string]entry)
		c.entries[category] = bucket
	}
	bucket[key] = entry{value: value, storedAt: c.clock.Now()}
}

// Clear drops the given categories, or everything when none are given.
func (c *Cache) Clear(categories ...Category) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(categories) == 0 {
		c.entries = make(map[Category]map[string]entry)
		return
	}
	for _, cat := range categories {
		delete(c.entries, cat)
	}
}

// Len counts stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, bucket := range c.entries {
		n += len(bucket)
	}
	return n
}

// GetAs is Get with a type assertion. A stored value of another type is a miss.
func GetAs[T any](c *Cache, category Category, key string) (T, bool) {
	var zero T
	v, ok := c.Get(category, key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
