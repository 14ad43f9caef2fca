package boost

import (
	"context"
	"time"

	"github.com/autoci/marketplace/internal/db"
	"github.com/autoci/marketplace/internal/models"
)

// GormStore runs purchases against the database repositories
type GormStore struct {
	repo *db.Repository
}

// NewGormStore creates a Store over repo
func NewGormStore(repo *db.Repository) *GormStore {
	return &GormStore{repo: repo}
}

// InTx implements Store
func (s *GormStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	return s.repo.Transaction(ctx, func(tx *db.Repository) error {
		return fn(&gormTx{
			repo:          tx,
			listings:      db.NewListingRepository(tx),
			profiles:      db.NewProfileRepository(tx),
			boosts:        db.NewBoostRepository(tx),
			notifications: db.NewNotificationRepository(tx),
		})
	})
}

type gormTx struct {
	repo          *db.Repository
	listings      *db.ListingRepository
	profiles      *db.ProfileRepository
	boosts        *db.BoostRepository
	notifications *db.NotificationRepository
}

func (t *gormTx) GetListing(ctx context.Context, id, column string) (*models.Listing, error) {
	return t.listings.GetByIDWithColumn(ctx, id, column)
}

func (t *gormTx) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return t.profiles.GetByID(ctx, id)
}

func (t *gormTx) DebitCredits(ctx context.Context, profileID string, amount int64) (bool, error) {
	return t.profiles.DebitCredits(ctx, profileID, amount)
}

func (t *gormTx) SetBoost(ctx context.Context, listingID string, until time.Time, column string) error {
	return t.listings.SetBoost(ctx, listingID, until, column)
}

func (t *gormTx) CreateBoost(ctx context.Context, boost *models.Boost, withStartedAt bool) error {
	return t.boosts.Create(ctx, boost, withStartedAt)
}

func (t *gormTx) CreateNotification(ctx context.Context, n *models.Notification) error {
	return t.notifications.Create(ctx, n)
}

func (t *gormTx) SavePoint(name string, fn func() error) error {
	return t.repo.WithSavePoint(name, fn)
}
