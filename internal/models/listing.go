package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ListingStatus is the lifecycle state of a listing
type ListingStatus string

// Listing statuses
const (
	StatusPending  ListingStatus = "pending"
	StatusActive   ListingStatus = "active"
	StatusSold     ListingStatus = "sold"
	StatusRejected ListingStatus = "rejected"
	StatusArchived ListingStatus = "archived"
)

// AllStatuses lists every status in display order
var AllStatuses = []ListingStatus{StatusPending, StatusActive, StatusSold, StatusRejected, StatusArchived}

// Condition of the vehicle
type Condition string

// Vehicle conditions
const (
	ConditionNew      Condition = "new"
	ConditionUsed     Condition = "used"
	ConditionImported Condition = "imported"
)

// FuelType of the vehicle
type FuelType string

// Fuel types
const (
	FuelPetrol   FuelType = "petrol"
	FuelDiesel   FuelType = "diesel"
	FuelHybrid   FuelType = "hybrid"
	FuelElectric FuelType = "electric"
	FuelLPG      FuelType = "lpg"
)

// Transmission of the vehicle
type Transmission string

// Transmissions
const (
	TransmissionManual    Transmission = "manual"
	TransmissionAutomatic Transmission = "automatic"
)

// ViewCount is one row of the views tracking aggregate
type ViewCount struct {
	Count int64 `json:"count"`
}

// Listing represents a vehicle for sale
type Listing struct {
	ID           string         `gorm:"primaryKey;type:uuid;column:id" json:"id"`
	UserID       string         `gorm:"type:uuid;not null;column:user_id" json:"user_id"`
	Title        string         `gorm:"type:varchar(255);not null;column:title" json:"title"`
	Description  string         `gorm:"type:text;column:description" json:"description"`
	Brand        string         `gorm:"type:varchar(64);not null;column:brand" json:"brand"`
	Model        string         `gorm:"type:varchar(64);not null;column:model" json:"model"`
	Year         int            `gorm:"not null;column:year" json:"year"`
	Condition    Condition      `gorm:"type:varchar(16);column:condition" json:"condition"`
	FuelType     FuelType       `gorm:"type:varchar(16);column:fuel_type" json:"fuel_type"`
	Transmission Transmission   `gorm:"type:varchar(16);column:transmission" json:"transmission"`
	Color        string         `gorm:"type:varchar(32);column:color" json:"color"`
	Doors        int            `gorm:"column:doors" json:"doors"`
	Price        int64          `gorm:"not null;column:price" json:"price"`
	Location     string         `gorm:"type:varchar(255);column:location" json:"location"`
	Images       pq.StringArray `gorm:"type:text[];column:images" json:"images"`
	Status       ListingStatus  `gorm:"type:varchar(16);not null;default:pending;column:status" json:"status"`
	IsBoosted    bool           `gorm:"not null;default:false;column:is_boosted" json:"is_boosted"`
	BoostUntil   *time.Time     `gorm:"column:boost_until" json:"boost_until,omitempty"`
	Views        int64          `gorm:"not null;default:0;column:views" json:"views"`
	CreatedAt    time.Time      `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;column:updated_at" json:"updated_at"`

	// TrackedViews is only populated when the query selects the views
	// tracking aggregate.
	TrackedViews  *int64      `gorm:"column:tracked_views;->" json:"-"`
	ViewsTracking []ViewCount `gorm:"-" json:"views_tracking,omitempty"`
}

// TableName specifies the table name for Listing
func (Listing) TableName() string {
	return "listings"
}

// AfterFind exposes the tracked views aggregate in its wire shape.
func (l *Listing) AfterFind(tx *gorm.DB) error {
	if l.TrackedViews != nil {
		l.ViewsTracking = []ViewCount{{Count: *l.TrackedViews}}
	}
	return nil
}

// IsBoostActive reports whether the listing is boosted with an unexpired
// boost_until. The is_boosted flag on its own is advisory: it is not cleared
// when a boost lapses.
func (l *Listing) IsBoostActive(now time.Time) bool {
	return l.IsBoosted && l.BoostUntil != nil && l.BoostUntil.After(now)
}

// DisplayViews reconciles the listing counter with the tracking aggregate,
// taking the larger of the two.
func (l *Listing) DisplayViews() int64 {
	views := l.Views
	if len(l.ViewsTracking) > 0 && l.ViewsTracking[0].Count > views {
		views = l.ViewsTracking[0].Count
	}
	return views
}

// PrimaryImage returns the first image, or "" when the listing has none.
func (l *Listing) PrimaryImage() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}
