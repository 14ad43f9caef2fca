// Package boost sells extended visibility for listings against account
// credits.
package boost

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autoci/marketplace/internal/metrics"
	"github.com/autoci/marketplace/internal/models"
	"github.com/autoci/marketplace/internal/schema"
	"github.com/autoci/marketplace/pkg/logging"
	"github.com/autoci/marketplace/pkg/telemetry"
)

// Business rejections. None of them is retryable.
var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrNotOwner            = errors.New("listing belongs to another account")
	ErrListingNotActive    = errors.New("only active listings can be boosted")
	ErrUnknownDuration     = errors.New("no boost offer for this duration")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// IsRejection reports whether err is one of the business rejections above
func IsRejection(err error) bool {
	for _, target := range []error{ErrListingNotFound, ErrNotOwner, ErrListingNotActive, ErrUnknownDuration, ErrProfileNotFound, ErrInsufficientCredits} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// TxStore is the data access a purchase needs, bound to one transaction.
type TxStore interface {
	GetListing(ctx context.Context, id, column string) (*models.Listing, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	DebitCredits(ctx context.Context, profileID string, amount int64) (bool, error)
	SetBoost(ctx context.Context, listingID string, until time.Time, column string) error
	CreateBoost(ctx context.Context, boost *models.Boost, withStartedAt bool) error
	CreateNotification(ctx context.Context, n *models.Notification) error
	// SavePoint runs fn so that its failure leaves the transaction usable
	SavePoint(name string, fn func() error) error
}

// Store opens transactions
type Store interface {
	InTx(ctx context.Context, fn func(tx TxStore) error) error
}

// ColumnPreference tracks which boost expiry column to try first
type ColumnPreference interface {
	Current() string
	Prefer(column string)
}

// Service runs boost purchases
type Service struct {
	store   Store
	columns ColumnPreference
	prices  map[int]int64
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics sets the metrics recorder
func WithMetrics(rec metrics.Recorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// NewService creates a Service selling the given duration (days) to price
// (credits) offers.
func NewService(store Store, columns ColumnPreference, prices map[int]int64, opts ...Option) *Service {
	s := &Service{
		store:   store,
		columns: columns,
		prices:  prices,
		metrics: metrics.Nop{},
		logger:  logging.WithComponent("boost"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cost returns the credit price of a boost of days
func (s *Service) Cost(days int) (int64, error) {
	price, ok := s.prices[days]
	if !ok {
		return 0, fmt.Errorf("%w: %d days", ErrUnknownDuration, days)
	}
	return price, nil
}

// ExtendBoost returns the new expiry of a boost of days bought at now. An
// unexpired current boost is extended; otherwise the boost starts now.
func ExtendBoost(now time.Time, current *time.Time, days int) time.Time {
	start := now
	if current != nil && current.After(now) {
		start = *current
	}
	return start.AddDate(0, 0, days)
}

// Purchase boosts listingID for days on behalf of userID. Ownership, listing
// status and balance are checked, credits debited, the listing expiry
// extended, the purchase recorded and the owner notified, all in one
// transaction.
func (s *Service) Purchase(ctx context.Context, userID, listingID string, days int) (*models.Boost, error) {
	ctx, span := telemetry.StartSpan(ctx, "boost.purchase")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	price, err := s.Cost(days)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var purchased *models.Boost
	err = s.store.InTx(ctx, func(tx TxStore) error {
		listing, err := s.getListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if listing == nil {
			return ErrListingNotFound
		}
		if listing.UserID != userID {
			return ErrNotOwner
		}
		if listing.Status != models.StatusActive {
			return ErrListingNotActive
		}

		profile, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		if profile == nil {
			return ErrProfileNotFound
		}
		if profile.Credits < price {
			return ErrInsufficientCredits
		}
		debited, err := tx.DebitCredits(ctx, userID, price)
		if err != nil {
			return fmt.Errorf("failed to debit credits: %w", err)
		}
		if !debited {
			return ErrInsufficientCredits
		}

		until := ExtendBoost(now, listing.BoostUntil, days)
		if err := s.setBoost(ctx, tx, listing.ID, until); err != nil {
			return err
		}

		startedAt := now
		record := &models.Boost{
			ID:           uuid.NewString(),
			ListingID:    listing.ID,
			UserID:       userID,
			DurationDays: days,
			CreditsUsed:  price,
			StartedAt:    &startedAt,
			EndsAt:       until,
			IsActive:     true,
			CreatedAt:    now,
		}
		if err := s.createBoost(ctx, tx, record); err != nil {
			return err
		}

		if err := tx.CreateNotification(ctx, &models.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Type:      models.NotifyBoostActivated,
			Title:     "Boost activé",
			Body:      fmt.Sprintf("%q est mise en avant jusqu'au %s.", listing.Title, until.Format("02/01/2006")),
			ListingID: sql.NullString{String: listing.ID, Valid: true},
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}

		purchased = record
		return nil
	})
	if err != nil {
		if IsRejection(err) {
			s.logger.Info("Boost purchase rejected",
				zap.String("user_id", userID),
				zap.String("listing_id", listingID),
				zap.Error(err))
		}
		return nil, err
	}

	s.metrics.RecordBoostPurchase(days)
	s.logger.Info("Boost purchased",
		zap.String("user_id", userID),
		zap.String("listing_id", listingID),
		zap.Int("days", days),
		zap.Int64("credits", price),
		zap.Time("ends_at", purchased.EndsAt))
	return purchased, nil
}

// getListing reads the listing under the preferred boost column and, if the
// schema lacks it, under the alternate one.
func (s *Service) getListing(ctx context.Context, tx TxStore, listingID string) (*models.Listing, error) {
	var listing *models.Listing
	err := s.withColumn(tx, "boost_read", func(column string) error {
		var err error
		listing, err = tx.GetListing(ctx, listingID, column)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	return listing, nil
}

func (s *Service) setBoost(ctx context.Context, tx TxStore, listingID string, until time.Time) error {
	err := s.withColumn(tx, "boost_write", func(column string) error {
		return tx.SetBoost(ctx, listingID, until, column)
	})
	if err != nil {
		return fmt.Errorf("failed to extend boost: %w", err)
	}
	return nil
}

// withColumn runs fn in a savepoint under the preferred column, then once
// more under the alternate column when the first attempt hit a missing
// boost column.
func (s *Service) withColumn(tx TxStore, savepoint string, fn func(column string) error) error {
	column := s.columns.Current()
	err := tx.SavePoint(savepoint, func() error { return fn(column) })
	if err == nil || !schema.IsMissingColumnErrorFor(schema.BoostColumns, err) {
		return err
	}

	alternate := schema.Alternate(column)
	s.metrics.RecordSchemaRetry(alternate)
	if err := tx.SavePoint(savepoint, func() error { return fn(alternate) }); err != nil {
		return err
	}
	s.columns.Prefer(alternate)
	return nil
}

// createBoost appends the record, dropping started_at for schemas without it.
func (s *Service) createBoost(ctx context.Context, tx TxStore, record *models.Boost) error {
	err := tx.SavePoint("boost_record", func() error {
		return tx.CreateBoost(ctx, record, true)
	})
	if err != nil && schema.IsMissingColumn(schema.StartedAt, err) {
		s.logger.Info("boosts.started_at missing, recording without it")
		record.StartedAt = nil
		err = tx.CreateBoost(ctx, record, false)
	}
	if err != nil {
		return fmt.Errorf("failed to record boost: %w", err)
	}
	return nil
}
