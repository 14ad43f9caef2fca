package models

import (
	"time"
)

// Boost is an append-only record of a visibility purchase. A re-boost adds a
// new record instead of mutating the previous one.
type Boost struct {
	ID           string     `gorm:"primaryKey;type:uuid;column:id" json:"id"`
	ListingID    string     `gorm:"type:uuid;not null;column:listing_id" json:"listing_id"`
	UserID       string     `gorm:"type:uuid;not null;column:user_id" json:"user_id"`
	DurationDays int        `gorm:"not null;column:duration_days" json:"duration_days"`
	CreditsUsed  int64      `gorm:"not null;column:credits_used" json:"credits_used"`
	StartedAt    *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	EndsAt       time.Time  `gorm:"not null;column:ends_at" json:"ends_at"`
	IsActive     bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt    time.Time  `gorm:"not null;column:created_at" json:"created_at"`

	// Relationships
	Listing *Listing `gorm:"foreignKey:ListingID;references:ID" json:"-"`
}

// TableName specifies the table name for Boost
func (Boost) TableName() string {
	return "boosts"
}
