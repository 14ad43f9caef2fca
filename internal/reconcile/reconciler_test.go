package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListings struct {
	mu    sync.Mutex
	calls []time.Time
	n     int64
	err   error
}

func (f *fakeListings) ClearStaleBoosts(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.n, f.err
}

func (f *fakeListings) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBoosts struct {
	calls []time.Time
	n     int64
	err   error
}

func (f *fakeBoosts) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	f.calls = append(f.calls, now)
	return f.n, f.err
}

func TestRunOnce(t *testing.T) {
	at := time.Date(2026, 7, 1, 0, 0, 0, 0, time.FixedZone("GMT+1", 3600))
	listings := &fakeListings{n: 4}
	boosts := &fakeBoosts{n: 2}
	r := New(listings, boosts, time.Minute, WithClock(func() time.Time { return at }))

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{ListingsCleared: 4, BoostsDeactivated: 2}, res)

	require.Len(t, listings.calls, 1)
	require.Len(t, boosts.calls, 1)
	assert.Equal(t, listings.calls[0], boosts.calls[0], "one now per pass")
	assert.Equal(t, time.UTC, listings.calls[0].Location())
}

func TestRunOnceErrors(t *testing.T) {
	boom := errors.New("connection refused")

	listings := &fakeListings{err: boom}
	boosts := &fakeBoosts{}
	_, err := New(listings, boosts, time.Minute).RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, boosts.calls, "records are left alone when flags could not be cleared")

	res, err := New(&fakeListings{n: 1}, &fakeBoosts{err: boom}, time.Minute).RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), res.ListingsCleared)
}

func TestRunStopsOnCancel(t *testing.T) {
	listings := &fakeListings{err: errors.New("transient")}
	r := New(listings, &fakeBoosts{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return listings.count() >= 2 }, time.Second, 5*time.Millisecond,
		"a failed pass must not stop the loop")
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	r := New(&fakeListings{}, &fakeBoosts{}, 0)
	assert.Equal(t, defaultInterval, r.interval)
}
