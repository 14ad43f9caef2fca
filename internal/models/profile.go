package models

import "time"

// Role of an account
type Role string

// Roles
const (
	RoleBuyer  Role = "buyer"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// Profile represents an account's public profile and credit balance
type Profile struct {
	ID        string    `gorm:"primaryKey;type:uuid;column:id" json:"id"`
	FullName  string    `gorm:"type:varchar(255);column:full_name" json:"full_name"`
	Phone     string    `gorm:"type:varchar(32);column:phone" json:"phone"`
	Credits   int64     `gorm:"not null;default:0;column:credits" json:"credits"`
	Role      Role      `gorm:"type:varchar(16);not null;default:buyer;column:role" json:"role"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}
