// Package reconcile periodically resets boost state that has lapsed.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autoci/marketplace/internal/metrics"
	"github.com/autoci/marketplace/pkg/logging"
)

const defaultInterval = 5 * time.Minute

// ListingStore clears lapsed boost flags
type ListingStore interface {
	ClearStaleBoosts(ctx context.Context, now time.Time) (int64, error)
}

// BoostStore deactivates ended boost records
type BoostStore interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// Result counts the rows one pass changed
type Result struct {
	ListingsCleared   int64
	BoostsDeactivated int64
}

// Reconciler resets is_boosted on listings whose boost expired and marks
// ended boost records inactive. Readers never rely on the flag alone; this
// only keeps stored state tidy.
type Reconciler struct {
	listings ListingStore
	boosts   BoostStore
	interval time.Duration
	metrics  metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithMetrics sets the metrics recorder
func WithMetrics(rec metrics.Recorder) Option {
	return func(r *Reconciler) { r.metrics = rec }
}

// New creates a Reconciler running every interval
func New(listings ListingStore, boosts BoostStore, interval time.Duration, opts ...Option) *Reconciler {
	if interval <= 0 {
		interval = defaultInterval
	}
	r := &Reconciler{
		listings: listings,
		boosts:   boosts,
		interval: interval,
		metrics:  metrics.Nop{},
		logger:   logging.WithComponent("reconcile"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reconciles immediately and then every interval until ctx is done.
// Failed passes are logged and retried on the next tick.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("Starting boost reconciliation", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			res, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.Error("Boost reconciliation failed", zap.Error(err))
			} else if res.ListingsCleared > 0 || res.BoostsDeactivated > 0 {
				r.logger.Info("Reconciled lapsed boosts",
					zap.Int64("listings_cleared", res.ListingsCleared),
					zap.Int64("boosts_deactivated", res.BoostsDeactivated))
			} else {
				r.logger.Debug("No lapsed boosts")
			}
			r.wait(ctx)
		}
	}
}

// RunOnce performs a single pass with one consistent now
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	now := r.now().UTC()
	var res Result

	cleared, err := r.listings.ClearStaleBoosts(ctx, now)
	if err != nil {
		return res, fmt.Errorf("failed to clear stale boost flags: %w", err)
	}
	res.ListingsCleared = cleared
	r.metrics.RecordStaleBoostsCleared(cleared)

	deactivated, err := r.boosts.DeactivateExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("failed to deactivate ended boosts: %w", err)
	}
	res.BoostsDeactivated = deactivated
	return res, nil
}

// wait waits for the interval or until context is cancelled
func (r *Reconciler) wait(ctx context.Context) {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
