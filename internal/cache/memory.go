package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/autoci/marketplace/internal/models"
)

const (
	// DefaultTTL is how long a ranked result stays servable
	DefaultTTL = 30 * time.Second
	// DefaultSize bounds the number of distinct query signatures kept
	DefaultSize = 1024
)

type entry struct {
	at   time.Time
	data []models.Listing
}

// Memory is a process-local TTL cache of listing results keyed by query
// signature. The least recently used signature is evicted once the size
// bound is reached.
type Memory struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, entry]
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption configures a Memory cache
type MemoryOption func(*Memory)

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates a cache holding up to size entries for ttl each.
// Non-positive values fall back to the defaults.
func NewMemory(ttl time.Duration, size int, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := simplelru.NewLRU[string, entry](size, nil)
	if err != nil {
		// only possible for a non-positive size
		panic(err)
	}
	m := &Memory{entries: entries, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the data stored under key if it was inserted less than TTL ago.
// An entry at or past its TTL is dropped and reported absent.
func (m *Memory) Get(key string) ([]models.Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries.Get(key)
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.at) >= m.ttl {
		m.entries.Remove(key)
		return nil, false
	}
	return e.data, true
}

// Set stores data under key, stamped with the current time
func (m *Memory) Set(key string, data []models.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Add(key, entry{at: m.now(), data: data})
}

// SetAt stores data under key as if inserted at at, so a copy of an entry
// expires together with the original. An entry already past its TTL is not
// stored and SetAt reports false.
func (m *Memory) SetAt(key string, data []models.Listing, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.now().Sub(at) >= m.ttl {
		return false
	}
	m.entries.Add(key, entry{at: at, data: data})
	return true
}

// Clear drops every entry
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Purge()
}

// Len returns the number of stored entries, expired ones included
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}

// TTL returns the configured entry lifetime
func (m *Memory) TTL() time.Duration {
	return m.ttl
}

// KeyFor derives a cache key from a query signature. The JSON encoding is
// used when possible; values that cannot be encoded fall back to their
// formatted representation.
func KeyFor(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
