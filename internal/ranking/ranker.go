// Package ranking retrieves public listings with actively boosted listings
// surfaced first.
package ranking

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/autoci/marketplace/internal/cache"
	"github.com/autoci/marketplace/internal/metrics"
	"github.com/autoci/marketplace/internal/models"
	"github.com/autoci/marketplace/internal/schema"
	"github.com/autoci/marketplace/pkg/config"
	"github.com/autoci/marketplace/pkg/logging"
	"github.com/autoci/marketplace/pkg/telemetry"
)

const (
	// MaxBoosted caps the boosted phase regardless of the requested limit
	MaxBoosted = 100

	newestFirst = "created_at DESC"
)

// Store runs queries over active listings
type Store interface {
	QueryActiveListings(ctx context.Context, filters models.ListingFilters, q models.ListingQuery) ([]models.Listing, error)
}

// ColumnPreference tracks which boost expiry column to try first
type ColumnPreference interface {
	Current() string
	Prefer(column string)
}

// Signature identifies a ranked query for caching and deduplication
type Signature struct {
	Filters models.ListingFilters `json:"filters"`
	Limit   int                   `json:"limit"`
}

// Ranker implements the two-phase boosted-first listing fetch
type Ranker struct {
	store   Store
	cache   cache.ListingCache
	columns ColumnPreference
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time

	defaultLimit int
	maxLimit     int
	queryTimeout time.Duration

	group singleflight.Group
}

// Option configures a Ranker
type Option func(*Ranker)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

// WithMetrics sets the metrics recorder
func WithMetrics(rec metrics.Recorder) Option {
	return func(r *Ranker) { r.metrics = rec }
}

// WithLogger replaces the component logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Ranker) { r.logger = logger }
}

// NewRanker creates a Ranker
func NewRanker(store Store, c cache.ListingCache, columns ColumnPreference, cfg *config.RankingConfig, opts ...Option) *Ranker {
	r := &Ranker{
		store:        store,
		cache:        c,
		columns:      columns,
		metrics:      metrics.Nop{},
		logger:       logging.WithComponent("ranking"),
		now:          time.Now,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		queryTimeout: cfg.QueryTimeout,
	}
	if r.defaultLimit <= 0 {
		r.defaultLimit = 300
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeLimit applies the default to a non-positive limit and caps it at
// the configured maximum.
func (r *Ranker) NormalizeLimit(limit int) int {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if r.maxLimit > 0 && limit > r.maxLimit {
		limit = r.maxLimit
	}
	return limit
}

// FetchRankedListings returns up to limit active listings matching filters.
// Actively boosted listings come first; within each group listings are
// newest first. Backend failures degrade the result instead of failing the
// call: the returned error is only ever the caller's context error.
func (r *Ranker) FetchRankedListings(ctx context.Context, filters models.ListingFilters, limit int) ([]models.Listing, error) {
	limit = r.NormalizeLimit(limit)
	key := cache.KeyFor(Signature{Filters: filters, Limit: limit})

	if data, ok := r.cache.Get(ctx, key); ok {
		r.metrics.RecordCacheHit()
		return data, nil
	}
	r.metrics.RecordCacheMiss()

	// Identical concurrent calls share one fetch. The shared fetch must not
	// die with whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.fetch(shared, filters, limit, key), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val.([]models.Listing), nil
	}
}

func (r *Ranker) fetch(ctx context.Context, filters models.ListingFilters, limit int, key string) []models.Listing {
	ctx, span := telemetry.StartSpan(ctx, "ranking.fetch", attribute.Int("limit", limit))
	defer span.End()

	start := time.Now()
	defer func() { r.metrics.RecordFetchLatency(time.Since(start)) }()

	now := r.now()
	degraded := false

	boosted, column, err := r.fetchBoosted(ctx, filters, limit, now)
	if err != nil {
		degraded = true
		r.metrics.RecordDegraded("boosted")
		r.logger.Warn("Boosted listings unavailable, continuing without them", zap.Error(err))
		boosted = nil
	}

	result := boosted
	if len(boosted) < limit {
		rest, err := r.fetchRemainder(ctx, filters, limit, boosted, column)
		if err != nil {
			degraded = true
			r.metrics.RecordDegraded("remainder")
			r.logger.Warn("Remaining listings unavailable, returning boosted only",
				zap.Int("boosted", len(boosted)),
				zap.Error(err))
		} else {
			result = append(append(make([]models.Listing, 0, len(boosted)+len(rest)), boosted...), rest...)
		}
	}

	SortByBoost(result, now)
	if len(result) > limit {
		result = result[:limit]
	}
	if result == nil {
		result = []models.Listing{}
	}

	span.SetAttributes(attribute.Int("results", len(result)), attribute.Bool("degraded", degraded))
	if !degraded {
		r.cache.Set(ctx, key, result)
	}
	return result
}

// fetchBoosted runs the first phase and reports which boost column answered.
func (r *Ranker) fetchBoosted(ctx context.Context, filters models.ListingFilters, limit int, now time.Time) ([]models.Listing, string, error) {
	ctx, span := telemetry.StartSpan(ctx, "ranking.boosted")
	isBoosted := true
	q := models.ListingQuery{
		IsBoosted:  &isBoosted,
		BoostAfter: &now,
		OrderBy:    newestFirst,
		Limit:      min(MaxBoosted, limit),
	}
	rows, column, err := r.queryWithFallback(ctx, filters, q)
	telemetry.EndSpan(span, err)
	return rows, column, err
}

// fetchRemainder runs the second phase, excluding the boosted ids.
func (r *Ranker) fetchRemainder(ctx context.Context, filters models.ListingFilters, limit int, boosted []models.Listing, column string) ([]models.Listing, error) {
	ctx, span := telemetry.StartSpan(ctx, "ranking.remainder")
	q := models.ListingQuery{
		BoostColumn: column,
		OrderBy:     newestFirst,
		Limit:       limit - len(boosted),
	}
	if len(boosted) > 0 {
		q.ExcludeIDs = make([]string, len(boosted))
		for i := range boosted {
			q.ExcludeIDs[i] = boosted[i].ID
		}
	}
	rows, _, err := r.queryWithFallback(ctx, filters, q)
	telemetry.EndSpan(span, err)
	return rows, err
}

// queryWithFallback runs q under q.BoostColumn (or the preferred column) and
// retries once under the alternate column when the backend reports a missing
// boost column. The column that answered becomes the preferred one.
func (r *Ranker) queryWithFallback(ctx context.Context, filters models.ListingFilters, q models.ListingQuery) ([]models.Listing, string, error) {
	if q.BoostColumn == "" {
		q.BoostColumn = r.columns.Current()
	}
	rows, err := r.query(ctx, filters, q)
	if err == nil {
		return rows, q.BoostColumn, nil
	}
	if !schema.IsMissingColumnErrorFor(schema.BoostColumns, err) {
		return nil, q.BoostColumn, err
	}

	alternate := schema.Alternate(q.BoostColumn)
	r.metrics.RecordSchemaRetry(alternate)
	r.logger.Info("Boost column missing, retrying with alternate",
		zap.String("column", q.BoostColumn),
		zap.String("alternate", alternate),
		zap.Error(err))

	q.BoostColumn = alternate
	rows, err = r.query(ctx, filters, q)
	if err != nil {
		return nil, alternate, err
	}
	r.columns.Prefer(alternate)
	return rows, alternate, nil
}

func (r *Ranker) query(ctx context.Context, filters models.ListingFilters, q models.ListingQuery) ([]models.Listing, error) {
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}
	return r.store.QueryActiveListings(ctx, filters, q)
}

// SortByBoost orders listings with actively boosted ones first, then by
// created_at descending. The sort is stable.
func SortByBoost(listings []models.Listing, now time.Time) {
	sort.SliceStable(listings, func(i, j int) bool {
		ai, aj := listings[i].IsBoostActive(now), listings[j].IsBoostActive(now)
		if ai != aj {
			return ai
		}
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
}
