package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/autoci/marketplace/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db      *gorm.DB
	columns *ColumnResolver
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB, columns *ColumnResolver) *Repository {
	if columns == nil {
		columns = NewColumnResolver("")
	}
	return &Repository{db: db, columns: columns}
}

// Columns returns the boost column resolver shared by this repository
func (r *Repository) Columns() *ColumnResolver {
	return r.columns
}

// Transaction runs fn inside a database transaction. The repository handed to
// fn is bound to the transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, columns: r.columns})
	})
}

// WithSavePoint runs fn after a savepoint and rolls back to it when fn fails,
// leaving the surrounding transaction usable. Only meaningful inside
// Transaction.
func (r *Repository) WithSavePoint(name string, fn func() error) error {
	if err := r.db.SavePoint(name).Error; err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	err := fn()
	if err != nil {
		if rbErr := r.db.RollbackTo(name).Error; rbErr != nil {
			return fmt.Errorf("rollback to %s: %w (after %v)", name, rbErr, err)
		}
	}
	return err
}

// ProfileRepository provides profile-related database operations
type ProfileRepository struct {
	*Repository
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(repo *Repository) *ProfileRepository {
	return &ProfileRepository{Repository: repo}
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// DebitCredits removes amount credits from the profile if the balance covers
// it. It reports false when the balance was insufficient.
func (r *ProfileRepository) DebitCredits(ctx context.Context, id string, amount int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ? AND credits >= ?", id, amount).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// BoostRepository provides boost record operations
type BoostRepository struct {
	*Repository
}

// NewBoostRepository creates a new boost repository
func NewBoostRepository(repo *Repository) *BoostRepository {
	return &BoostRepository{Repository: repo}
}

// Create appends a boost record. withStartedAt=false omits the optional
// started_at column for schemas that lack it.
func (r *BoostRepository) Create(ctx context.Context, boost *models.Boost, withStartedAt bool) error {
	tx := r.db.WithContext(ctx)
	if !withStartedAt {
		tx = tx.Omit("started_at")
	}
	return tx.Create(boost).Error
}

// DeactivateExpired marks boost records that ended at or before now inactive
func (r *BoostRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Boost{}).
		Where("is_active = ? AND ends_at <= ?", true, now).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

// NotificationRepository provides notification operations
type NotificationRepository struct {
	*Repository
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(repo *Repository) *NotificationRepository {
	return &NotificationRepository{Repository: repo}
}

// Create stores a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// CountUnread counts the unread notifications of a user
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// ListRecent returns the latest notifications of a user
func (r *NotificationRepository) ListRecent(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkAllRead marks every unread notification of a user as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
