package models

import (
	"database/sql"
	"time"
)

// Notification represents a notification
type Notification struct {
	ID        string         `gorm:"primaryKey;type:uuid;column:id" json:"id"`
	UserID    string         `gorm:"type:uuid;not null;column:user_id" json:"user_id"`
	Type      string         `gorm:"type:varchar(32);not null;column:type" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null;column:title" json:"title"`
	Body      string         `gorm:"type:text;column:body" json:"body"`
	ListingID sql.NullString `gorm:"type:uuid;column:listing_id" json:"-"`
	IsRead    bool           `gorm:"not null;default:false;column:is_read" json:"is_read"`
	CreatedAt time.Time      `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// Notification types
const (
	NotifyBoostActivated  = "boost_activated"
	NotifyListingApproved = "listing_approved"
	NotifyListingRejected = "listing_rejected"
	NotifyNewMessage      = "new_message"
)
