// Package cache provides a process-local memoization layer with a fixed
// time-to-live measured from insertion.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Clock supplies the current time. Tests inject a fake.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry[V]) fresh(now time.Time) bool {
	return now.Sub(e.insertedAt) < e.ttl
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// TTL memoizes values per key. Entries expire ttl after they were stored,
// regardless of how often they are read. Concurrent misses on the same key
// each run compute; the last writer wins.
type TTL[K comparable, V any] struct {
	name   string
	ttl    time.Duration
	clock  Clock
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[K]entry[V]

	hits   atomic.Int64
	misses atomic.Int64
}

type config struct {
	name   string
	clock  Clock
	logger *slog.Logger
}

// Option configures a TTL cache.
type Option func(*config)

func WithClock(c Clock) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithName labels log lines so several caches can be told apart.
func WithName(name string) Option {
	return func(cfg *config) { cfg.name = name }
}

// New returns an empty cache whose Set uses defaultTTL.
func New[K comparable, V any](defaultTTL time.Duration, opts ...Option) *TTL[K, V] {
	cfg := config{name: "cache", clock: SystemClock, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	return &TTL[K, V]{
		name:    cfg.name,
		ttl:     defaultTTL,
		clock:   cfg.clock,
		logger:  cfg.logger,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the stored value if it has not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.fresh(now) {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Set inserts or replaces key with the default TTL.
func (c *TTL[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL inserts or replaces key; insertion time is taken from the clock.
func (c *TTL[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	e := entry[V]{value: value, insertedAt: c.clock.Now(), ttl: ttl}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// GetOrCompute returns the cached value for key when it is younger than ttl.
// Otherwise it calls compute once, stores a successful result and returns it.
// Errors are returned to the caller and never cached.
func (c *TTL[K, V]) GetOrCompute(key K, ttl time.Duration, compute func() (V, error)) (V, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.clock.Now()
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Sub(e.insertedAt) < ttl {
		c.hits.Add(1)
		c.logger.Debug("cache.hit", "cache", c.name, "age_ms", now.Sub(e.insertedAt).Milliseconds())
		return e.value, nil
	}

	c.misses.Add(1)
	c.logger.Debug("cache.miss", "cache", c.name, "expired", ok)
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.SetWithTTL(key, v, ttl)
	return v, nil
}

// Delete drops key if present.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeleteFunc drops every key for which match returns true and reports how
// many were dropped.
func (c *TTL[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// Clear drops every entry. Safe at any time; the only effect is recomputation.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
	c.logger.Info("cache.cleared", "cache", c.name, "entries", n)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *TTL[K, V]) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for k, e := range c.entries {
		if !e.fresh(now) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// Len counts stored entries, expired ones included until swept.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTL[K, V]) Stats() Stats {
	return Stats{Entries: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
