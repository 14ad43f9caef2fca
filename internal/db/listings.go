package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autoci/marketplace/internal/models"
	"github.com/autoci/marketplace/internal/schema"
)

const trackedViewsSelect = "(SELECT COUNT(*) FROM listing_views lv WHERE lv.listing_id = listings.id) AS tracked_views"

var listingOrders = map[string]string{
	"":                "created_at DESC",
	"created_at DESC": "created_at DESC",
	"created_at ASC":  "created_at ASC",
	"price ASC":       "price ASC",
	"price DESC":      "price DESC",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListingRepository provides listing-related database operations
type ListingRepository struct {
	*Repository
}

// NewListingRepository creates a new listing repository
func NewListingRepository(repo *Repository) *ListingRepository {
	return &ListingRepository{Repository: repo}
}

// selectListing selects every listing column plus the views aggregate. The
// expiry column is always named and aliased onto boost_until: a schema
// lacking it must fail the query so the caller retries under the other
// column, rather than silently reading a nil expiry out of listings.*.
func selectListing(tx *gorm.DB, boostColumn string) *gorm.DB {
	return tx.Select("listings.*, " + trackedViewsSelect + ", listings." + boostColumn + " AS boost_until")
}

func applyFilters(tx *gorm.DB, f models.ListingFilters) *gorm.DB {
	if f.Brand != "" {
		tx = tx.Where("listings.brand = ?", f.Brand)
	}
	if f.Model != "" {
		tx = tx.Where("listings.model = ?", f.Model)
	}
	if f.PriceMin != nil {
		tx = tx.Where("listings.price >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		tx = tx.Where("listings.price <= ?", *f.PriceMax)
	}
	if f.YearMin != nil {
		tx = tx.Where("listings.year >= ?", *f.YearMin)
	}
	if f.YearMax != nil {
		tx = tx.Where("listings.year <= ?", *f.YearMax)
	}
	if f.FuelType != "" {
		tx = tx.Where("listings.fuel_type = ?", f.FuelType)
	}
	if f.Transmission != "" {
		tx = tx.Where("listings.transmission = ?", f.Transmission)
	}
	if f.Condition != "" {
		tx = tx.Where("listings.condition = ?", f.Condition)
	}
	if f.Location != "" {
		tx = tx.Where("listings.location ILIKE ?", containsPattern(f.Location))
	}
	if f.Search != "" {
		p := containsPattern(f.Search)
		tx = tx.Where("(listings.title ILIKE ? OR listings.description ILIKE ? OR listings.brand ILIKE ? OR listings.model ILIKE ?)", p, p, p, p)
	}
	return tx
}

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// activeQuery builds the query over active listings without executing it.
func activeQuery(tx *gorm.DB, filters models.ListingFilters, q models.ListingQuery, boostColumn string) (*gorm.DB, error) {
	if !schema.IsBoostColumn(boostColumn) {
		return nil, fmt.Errorf("unknown boost column %q", boostColumn)
	}
	order, ok := listingOrders[q.OrderBy]
	if !ok {
		return nil, fmt.Errorf("unsupported order %q", q.OrderBy)
	}

	tx = selectListing(tx.Model(&models.Listing{}), boostColumn).
		Where("listings.status = ?", models.StatusActive)
	tx = applyFilters(tx, filters)

	if q.IsBoosted != nil {
		tx = tx.Where("listings.is_boosted = ?", *q.IsBoosted)
	}
	if q.BoostAfter != nil {
		tx = tx.Where(clause.Gt{Column: clause.Column{Table: "listings", Name: boostColumn}, Value: *q.BoostAfter})
	}
	if len(q.ExcludeIDs) > 0 {
		tx = tx.Where("listings.id NOT IN ?", q.ExcludeIDs)
	}

	tx = tx.Order(order)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx, nil
}

// QueryActiveListings runs a query over active listings. q.BoostColumn selects
// the expiry column; when empty the resolver's current column is used. A
// missing-column error is returned as is so the caller can retry.
func (r *ListingRepository) QueryActiveListings(ctx context.Context, filters models.ListingFilters, q models.ListingQuery) ([]models.Listing, error) {
	column := q.BoostColumn
	if column == "" {
		column = r.columns.Current()
	}
	tx, err := activeQuery(r.db.WithContext(ctx), filters, q, column)
	if err != nil {
		return nil, err
	}
	var listings []models.Listing
	if err := tx.Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// withBoostColumn runs fn under the current boost column and, when the
// backend reports that column missing, once more under the alternate one.
func (r *ListingRepository) withBoostColumn(fn func(column string) error) error {
	column := r.columns.Current()
	err := fn(column)
	if err != nil && schema.IsMissingColumnErrorFor(schema.BoostColumns, err) {
		alternate := schema.Alternate(column)
		if err = fn(alternate); err == nil {
			r.columns.Prefer(alternate)
		}
	}
	return err
}

// GetByID retrieves a listing by ID regardless of status
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	var listing *models.Listing
	err := r.withBoostColumn(func(column string) error {
		var err error
		listing, err = r.GetByIDWithColumn(ctx, id, column)
		return err
	})
	return listing, err
}

// GetByIDWithColumn retrieves a listing reading its boost expiry from column,
// without any retry. Inside a transaction callers wrap it in a savepoint.
func (r *ListingRepository) GetByIDWithColumn(ctx context.Context, id, column string) (*models.Listing, error) {
	if !schema.IsBoostColumn(column) {
		return nil, fmt.Errorf("unknown boost column %q", column)
	}
	var listing models.Listing
	err := selectListing(r.db.WithContext(ctx).Model(&models.Listing{}), column).
		Where("listings.id = ?", id).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

// ListAll returns up to limit listings of every status, newest first. It feeds
// the admin view which filters and pages in memory.
func (r *ListingRepository) ListAll(ctx context.Context, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.withBoostColumn(func(column string) error {
		listings = nil
		return selectListing(r.db.WithContext(ctx).Model(&models.Listing{}), column).
			Order("created_at DESC").
			Limit(limit).
			Find(&listings).Error
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// ComparablePrices returns prices of active listings of the same brand and
// model within yearSpread years, excluding excludeID.
func (r *ListingRepository) ComparablePrices(ctx context.Context, brand, model string, year, yearSpread int, excludeID string, limit int) ([]int64, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("status = ?", models.StatusActive).
		Where("LOWER(brand) = LOWER(?) AND LOWER(model) = LOWER(?)", brand, model)
	if year > 0 {
		tx = tx.Where("year BETWEEN ? AND ?", year-yearSpread, year+yearSpread)
	}
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}
	var prices []int64
	if err := tx.Order("created_at DESC").Limit(limit).Pluck("price", &prices).Error; err != nil {
		return nil, err
	}
	return prices, nil
}

// SetBoost marks a listing boosted until the given time under the given
// expiry column.
func (r *ListingRepository) SetBoost(ctx context.Context, listingID string, until time.Time, column string) error {
	if !schema.IsBoostColumn(column) {
		return fmt.Errorf("unknown boost column %q", column)
	}
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", listingID).
		Updates(map[string]interface{}{
			"is_boosted": true,
			column:       until,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ClearStaleBoosts resets is_boosted on listings whose expiry is missing or
// not after now.
func (r *ListingRepository) ClearStaleBoosts(ctx context.Context, now time.Time) (int64, error) {
	var cleared int64
	err := r.withBoostColumn(func(column string) error {
		result := r.db.WithContext(ctx).
			Model(&models.Listing{}).
			Where("is_boosted = ?", true).
			Where(fmt.Sprintf("(%s IS NULL OR %s <= ?)", column, column), now).
			Update("is_boosted", false)
		cleared = result.RowsAffected
		return result.Error
	})
	return cleared, err
}
