// Package msgcache holds recently selected messages per context fingerprint so
// repeated requests from the same situation can skip generation.
package msgcache

import (
	"container/list"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benvon/smart-nudge/internal/models"
)

// Rand picks a random entry. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Config bounds the cache
type Config struct {
	PerKey  int
	MaxAge  time.Duration
	MaxKeys int
}

// DefaultConfig returns 10 messages per key, 24h staleness and 100 keys
func DefaultConfig() Config {
	return Config{PerKey: 10, MaxAge: 24 * time.Hour, MaxKeys: 100}
}

// Stats reports cache effectiveness
type Stats struct {
	Keys    int     `json:"keys"`
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type cached struct {
	msg      *models.ContextualMessage
	storedAt time.Time
}

type bucket struct {
	key     string
	entries []cached
}

// Cache is an in-memory, process-lifetime message cache keyed by context fingerprint
type Cache struct {
	cfg Config
	rnd Rand
	now func() time.Time

	mu           sync.Mutex
	buckets      map[string]*list.Element
	lru          *list.List
	hits, misses int64
}

// Option configures a Cache
type Option func(*Cache)

// WithRand injects the random source used by Get
func WithRand(r Rand) Option {
	return func(c *Cache) {
		if r != nil {
			c.rnd = r
		}
	}
}

// WithClock overrides the clock used for staleness
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache; zero config fields take their defaults
func New(cfg Config, opts ...Option) *Cache {
	def := DefaultConfig()
	if cfg.PerKey <= 0 {
		cfg.PerKey = def.PerKey
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = def.MaxKeys
	}
	c := &Cache{
		cfg:     cfg,
		rnd:     globalRand{},
		now:     time.Now,
		buckets: make(map[string]*list.Element),
		lru:     list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fingerprint derives the cache key of a context
func Fingerprint(uc *models.UserContext) string {
	return fmt.Sprintf("%s|%s|%s|%t", uc.UserID, uc.SkillLevel, uc.TimeOfDay, uc.IsFirstLogin)
}

// Get returns a copy of a uniformly random fresh entry for uc's fingerprint
func (c *Cache) Get(uc *models.UserContext) (*models.ContextualMessage, bool) {
	key := Fingerprint(uc)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.buckets[key]
	if !ok {
		c.misses++
		return nil, false
	}
	b := el.Value.(*bucket)

	cutoff := c.now().Add(-c.cfg.MaxAge)
	fresh := b.entries[:0]
	for _, e := range b.entries {
		if e.storedAt.After(cutoff) {
			fresh = append(fresh, e)
		}
	}
	b.entries = fresh
	if len(fresh) == 0 {
		c.lru.Remove(el)
		delete(c.buckets, key)
		c.misses++
		return nil, false
	}

	c.lru.MoveToFront(el)
	c.hits++
	return fresh[c.rnd.IntN(len(fresh))].msg.Clone(), true
}

// Put stores a copy of msg under uc's fingerprint, dropping the oldest entry
// when the key is full and the least recently used key when the cache is full
func (c *Cache) Put(uc *models.UserContext, msg *models.ContextualMessage) {
	if msg == nil {
		return
	}
	key := Fingerprint(uc)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.buckets[key]
	if !ok {
		el = c.lru.PushFront(&bucket{key: key})
		c.buckets[key] = el
		for c.lru.Len() > c.cfg.MaxKeys {
			oldest := c.lru.Back()
			c.lru.Remove(oldest)
			delete(c.buckets, oldest.Value.(*bucket).key)
		}
	} else {
		c.lru.MoveToFront(el)
	}

	b := el.Value.(*bucket)
	b.entries = append(b.entries, cached{msg: msg.Clone(), storedAt: c.now()})
	if over := len(b.entries) - c.cfg.PerKey; over > 0 {
		b.entries = append([]cached(nil), b.entries[over:]...)
	}
}

// Update replaces every cached copy of msg.ID with msg. It reports whether any entry matched.
func (c *Cache) Update(msg *models.ContextualMessage) bool {
	if msg == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	updated := false
	for _, el := range c.buckets {
		b := el.Value.(*bucket)
		for i := range b.entries {
			if b.entries[i].msg.ID == msg.ID {
				b.entries[i].msg = msg.Clone()
				updated = true
			}
		}
	}
	return updated
}

// Stats returns a snapshot of cache statistics
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Keys: len(c.buckets), Hits: c.hits, Misses: c.misses}
	for _, el := range c.buckets {
		s.Entries += len(el.Value.(*bucket).entries)
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Reset clears all entries and statistics
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets = make(map[string]*list.Element)
	c.lru.Init()
	c.hits, c.misses = 0, 0
}
