package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoci/marketplace/internal/cache"
	"github.com/autoci/marketplace/internal/models"
	"github.com/autoci/marketplace/internal/schema"
	"github.com/autoci/marketplace/pkg/config"
)

var baseTime = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu      sync.Mutex
	calls   []models.ListingQuery
	respond func(q models.ListingQuery) ([]models.Listing, error)
}

func (s *fakeStore) QueryActiveListings(_ context.Context, _ models.ListingFilters, q models.ListingQuery) ([]models.Listing, error) {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	s.mu.Unlock()
	return s.respond(q)
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeColumns struct {
	current string
}

func (c *fakeColumns) Current() string      { return c.current }
func (c *fakeColumns) Prefer(column string) { c.current = column }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func listing(id string, ageHours int, boostHours int) models.Listing {
	l := models.Listing{
		ID:        id,
		Status:    models.StatusActive,
		CreatedAt: baseTime.Add(-time.Duration(ageHours) * time.Hour),
	}
	if boostHours != 0 {
		until := baseTime.Add(time.Duration(boostHours) * time.Hour)
		l.IsBoosted = true
		l.BoostUntil = &until
	}
	return l
}

func isBoostedPhase(q models.ListingQuery) bool {
	return q.IsBoosted != nil && *q.IsBoosted
}

func newTestRanker(store Store, clk *clock, columns ColumnPreference) (*Ranker, *cache.Memory) {
	mem := cache.NewMemory(30*time.Second, 16, cache.WithClock(clk.Now))
	r := NewRanker(store, cache.NewTiered(mem, nil), columns, &config.RankingConfig{
		DefaultLimit: 300,
		MaxLimit:     1000,
		QueryTimeout: time.Second,
	}, WithClock(clk.Now), WithLogger(zap.NewNop()))
	return r, mem
}

// twoPhaseStore answers the boosted phase with boosted and the remainder
// phase with the rest minus excluded ids, both capped at the query limit.
func twoPhaseStore(boosted, rest []models.Listing) *fakeStore {
	return &fakeStore{respond: func(q models.ListingQuery) ([]models.Listing, error) {
		src := rest
		if isBoostedPhase(q) {
			src = boosted
		}
		excluded := map[string]bool{}
		for _, id := range q.ExcludeIDs {
			excluded[id] = true
		}
		var out []models.Listing
		for _, l := range src {
			if !excluded[l.ID] && len(out) < q.Limit {
				out = append(out, l)
			}
		}
		return out, nil
	}}
}

func TestFetchRankedListingsOrdering(t *testing.T) {
	boosted := []models.Listing{listing("b1", 5, 24), listing("b2", 1, 48)}
	rest := []models.Listing{
		listing("n1", 0, 0),
		listing("b1", 5, 24),
		listing("stale", 2, -3), // flag set, boost lapsed
		listing("n2", 10, 0),
	}
	store := twoPhaseStore(boosted, rest)
	r, _ := newTestRanker(store, &clock{now: baseTime}, &fakeColumns{current: schema.BoostUntil})

	got, err := r.FetchRankedListings(context.Background(), models.ListingFilters{}, 10)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, l := range got {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"b2", "b1", "n1", "stale", "n2"}, ids)

	// boosted before non-boosted, newest first within each group
	seenInactive := false
	for i, l := range got {
		active := l.IsBoostActive(baseTime)
		if !active {
			seenInactive = true
		}
		assert.False(t, active && seenInactive, "boosted listing %s after a non-boosted one", l.ID)
		if i > 0 && got[i-1].IsBoostActive(baseTime) == active {
			assert.False(t, l.CreatedAt.After(got[i-1].CreatedAt), "created_at not descending at %d", i)
		}
	}

	require.Len(t, store.calls, 2)
	assert.Equal(t, []string{"b1", "b2"}, store.calls[1].ExcludeIDs)
	assert.Equal(t, 8, store.calls[1].Limit)
	assert.Nil(t, store.calls[1].IsBoosted)
}

func TestFetchRankedListingsPhaseShape(t *testing.T) {
	store := twoPhaseStore(nil, []models.Listing{listing("n1", 0, 0)})
	r, _ := newTestRanker(store, &clock{now: baseTime}, &fakeColumns{current: schema.BoostUntil})

	_, err := r.FetchRankedListings(context.Background(), models.ListingFilters{Brand: "Kia"}, 500)
	require.NoError(t, err)

	require.Len(t, store.calls, 2)
	first := store.calls[0]
	assert.True(t, isBoostedPhase(first))
	assert.Equal(t, baseTime, *first.BoostAfter)
	assert.Equal(t, MaxBoosted, first.Limit)
	assert.Equal(t, schema.BoostUntil, first.BoostColumn)
	assert.Equal(t, "created_at DESC", first.OrderBy)

	second := store.calls[1]
	assert.Empty(t, second.ExcludeIDs, "no exclusion clause for an empty boosted set")
	assert.Equal(t, 500, second.Limit)
}

func TestFetchRankedListingsCache(t *testing.T) {
	clk := &clock{now: baseTime}
	store := twoPhaseStore(nil, []models.Listing{listing("n1", 0, 0)})
	r, _ := newTestRanker(store, clk, &fakeColumns{current: schema.BoostUntil})
	ctx := context.Background()
	filters := models.ListingFilters{Brand: "Toyota"}

	first, err := r.FetchRankedListings(ctx, filters, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, store.callCount())

	clk.Advance(29 * time.Second)
	second, err := r.FetchRankedListings(ctx, filters, 20)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, store.callCount(), "identical call within the TTL must not reach the store")

	_, err = r.FetchRankedListings(ctx, filters, 21)
	require.NoError(t, err)
	assert.Equal(t, 4, store.callCount(), "different limit is a different signature")

	clk.Advance(time.Second)
	_, err = r.FetchRankedListings(ctx, filters, 20)
	require.NoError(t, err)
	assert.Equal(t, 6, store.callCount(), "call at the TTL must refetch")
}

func TestFetchRankedListingsSkipsRemainderWhenFull(t *testing.T) {
	boosted := []models.Listing{listing("b1", 1, 5), listing("b2", 2, 5), listing("b3", 3, 5)}
	store := twoPhaseStore(boosted, []models.Listing{listing("n1", 0, 0)})
	r, _ := newTestRanker(store, &clock{now: baseTime}, &fakeColumns{current: schema.BoostUntil})

	got, err := r.FetchRankedListings(context.Background(), models.ListingFilters{}, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 1, store.callCount())
}

func TestFetchRankedListingsLimit(t *testing.T) {
	var rest []models.Listing
	for i := 0; i < 50; i++ {
		rest = append(rest, listing(fmt.Sprintf("n%d", i), i, 0))
	}
	// a store ignoring the limit must not leak extra rows
	store := &fakeStore{respond: func(q models.ListingQuery) ([]models.Listing, error) {
		if isBoostedPhase(q) {
			return []models.Listing{listing("b1", 0, 1)}, nil
		}
		return rest, nil
	}}
	r, _ := newTestRanker(store, &clock{now: baseTime}, &fakeColumns{current: schema.BoostUntil})

	got, err := r.FetchRankedListings(context.Background(), models.ListingFilters{}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, "b1", got[0].ID)

	assert.Equal(t, 300, r.NormalizeLimit(0))
	assert.Equal(t, 300, r.NormalizeLimit(-4))
	assert.Equal(t, 1000, r.NormalizeLimit(5000))
}

func TestFetchRankedListingsSchemaRetry(t *testing.T) {
	missing := &schema.BackendError{Code: "PGRST204", Message: "Could not find the 'boost_until' column of 'listings' in the schema cache"}
	store := &fakeStore{respond: func(q models.ListingQuery) ([]models.Listing, error) {
		if q.BoostColumn == schema.BoostUntil {
			return nil, missing
		}
		if isBoostedPhase(q) {
			return []models.Listing{listing("b1", 1, 2)}, nil
		}
		return []models.Listing{listing("n1", 0, 0)}, nil
	}}
	columns := &fakeColumns{current: schema.BoostUntil}
	r, _ := newTestRanker(store, &clock{now: baseTime}, columns)

	got, err := r.FetchRankedListings(context.Background(), models.ListingFilters{}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b1", got[0].ID)

	require.Len(t, store.calls, 3)
	assert.Equal(t, schema.BoostUntil, store.calls[0].BoostColumn)
	assert.Equal(t, schema.BoostExpiresAt, store.calls[1].BoostColumn)
	assert.Equal(t, schema.BoostExpiresAt, store.calls[2].BoostColumn)
	assert.Equal(t, schema.BoostExpiresAt, columns.Current())
}

func TestFetchRankedListingsDegrades(t *testing.T) {
	t.Run("boosted phase fails", func(t *testing.T) {
		store := &fakeStore{respond: func(q models.ListingQuery) ([]models.Listing, error) {
			if isBoostedPhase(q) {
				return nil, errors.New("network timeout")
			}
			return []models.Listing{listing("n1", 0, 0)}, nil
		}}
		r, mem := newTestRanker(store, &clock{now: baseTime}, &fakeColumns{current: schema.BoostUntil})

		got, err := r.FetchRankedListings(context.Background(), models.ListingFilters{}, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "n1", got[0].ID)
		assert.Equal(t, 2, store.callCount(), "unrelated errors are not retried")
		assert.Equal(t, 0, mem.Len(), "partial results are not cached")
	})

	t.Run("remainder phase fails", func(t *testing.T) {
		store := &fakeStore{respond: func(q models.ListingQuery) ([]models.Listing, error) {
			if isBoostedPhase(q) {
				return []models.Listing{listing("b1", 0, 1)}, nil
			}
			return nil, errors.New("connection reset by peer")
		}}
		r, mem := newTestRanker(store, &clock{now: baseTime}, &fakeColumns{current: schema.BoostUntil})

		got, err := r.FetchRankedListings(context.Background(), models.ListingFilters{}, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b1", got[0].ID)
		assert.Equal(t, 0, mem.Len())
	})

	t.Run("everything fails", func(t *testing.T) {
		store := &fakeStore{respond: func(q models.ListingQuery) ([]models.Listing, error) {
			return nil, errors.New("service unavailable")
		}}
		r, _ := newTestRanker(store, &clock{now: baseTime}, &fakeColumns{current: schema.BoostUntil})

		got, err := r.FetchRankedListings(context.Background(), models.ListingFilters{}, 5)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestFetchRankedListingsDedupesInFlight(t *testing.T) {
	release := make(chan struct{})
	store := &fakeStore{respond: func(q models.ListingQuery) ([]models.Listing, error) {
		<-release
		return []models.Listing{listing("n1", 0, 0)}, nil
	}}
	r, _ := newTestRanker(store, &clock{now: baseTime}, &fakeColumns{current: schema.BoostUntil})

	var wg sync.WaitGroup
	results := make([][]models.Listing, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.FetchRankedListings(context.Background(), models.ListingFilters{}, 5)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 2, store.callCount(), "one shared fetch of two phases")
	for _, res := range results {
		assert.NotEmpty(t, res)
	}
}

func TestFetchRankedListingsCallerCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	store := &fakeStore{respond: func(q models.ListingQuery) ([]models.Listing, error) {
		<-release
		return nil, nil
	}}
	r, _ := newTestRanker(store, &clock{now: baseTime}, &fakeColumns{current: schema.BoostUntil})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.FetchRankedListings(ctx, models.ListingFilters{}, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortByBoostIsStable(t *testing.T) {
	a := listing("a", 1, 0)
	b := listing("b", 1, 0)
	c := listing("c", 3, 2)
	items := []models.Listing{a, b, c}

	SortByBoost(items, baseTime)
	assert.Equal(t, "c", items[0].ID)
	assert.Equal(t, "a", items[1].ID)
	assert.Equal(t, "b", items[2].ID)
}
