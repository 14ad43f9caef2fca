package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/autoci/marketplace/internal/models"
	"github.com/autoci/marketplace/pkg/logging"
)

// ListingCache stores ranked listing results by query signature
type ListingCache interface {
	Get(ctx context.Context, key string) ([]models.Listing, bool)
	Set(ctx context.Context, key string, data []models.Listing)
}

// SharedStore is the JSON key/value store behind the shared tier. *Cache
// implements it.
type SharedStore interface {
	GetJSON(ctx context.Context, key string, dst interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// sharedEntry carries the original insertion time so that every instance
// expires a result at the same moment.
type sharedEntry struct {
	StoredAt time.Time        `json:"stored_at"`
	Listings []models.Listing `json:"listings"`
}

// Tiered checks the process-local cache first and the shared Redis cache
// second. A Redis hit is copied into the local tier with its original
// insertion time. Redis failures are logged and treated as misses.
type Tiered struct {
	local  *Memory
	shared SharedStore
	logger *zap.Logger
}

// NewTiered creates a tiered cache. shared may be nil, in which case only the
// local tier is used.
func NewTiered(local *Memory, shared *Cache) *Tiered {
	if shared == nil {
		return newTiered(local, nil)
	}
	return newTiered(local, shared)
}

func newTiered(local *Memory, shared SharedStore) *Tiered {
	return &Tiered{
		local:  local,
		shared: shared,
		logger: logging.WithComponent("cache"),
	}
}

func sharedKey(key string) string {
	return "ranked:" + HashKey(key)
}

// Get implements ListingCache
func (t *Tiered) Get(ctx context.Context, key string) ([]models.Listing, bool) {
	if data, ok := t.local.Get(key); ok {
		return data, true
	}
	if t.shared == nil {
		return nil, false
	}

	var e sharedEntry
	if err := t.shared.GetJSON(ctx, sharedKey(key), &e); err != nil {
		if !errors.Is(err, ErrMiss) && !errors.Is(err, ErrCacheDisabled) {
			t.logger.Warn("Shared cache read failed", zap.Error(err))
		}
		return nil, false
	}
	if !t.local.SetAt(key, e.Listings, e.StoredAt) {
		return nil, false
	}
	return e.Listings, true
}

// Set implements ListingCache
func (t *Tiered) Set(ctx context.Context, key string, data []models.Listing) {
	at := t.local.now()
	t.local.SetAt(key, data, at)
	if t.shared == nil {
		return
	}
	e := sharedEntry{StoredAt: at.UTC(), Listings: data}
	if err := t.shared.SetJSON(ctx, sharedKey(key), e, t.local.TTL()); err != nil && !errors.Is(err, ErrCacheDisabled) {
		t.logger.Warn("Shared cache write failed", zap.Error(err))
	}
}

// Clear drops the local tier. Shared entries expire on their own.
func (t *Tiered) Clear() {
	t.local.Clear()
}
