package api

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/autoci/marketplace/internal/api/middleware"
	"github.com/autoci/marketplace/internal/models"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 50
)

// NotificationStore reads and acknowledges notifications
type NotificationStore interface {
	CountUnread(ctx context.Context, userID string) (int64, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// NotificationsAPI provides the caller's notification methods
type NotificationsAPI struct {
	store NotificationStore
}

// NewNotificationsAPI creates a new notifications API
func NewNotificationsAPI(store NotificationStore) *NotificationsAPI {
	return &NotificationsAPI{store: store}
}

func requireUser(ctx *gin.Context) (string, error) {
	userID := middleware.UserID(ctx)
	if userID == "" {
		return "", Forbidden("authentication required")
	}
	return userID, nil
}

// UnreadCount handles notifications.unread_count
func (a *NotificationsAPI) UnreadCount(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	count, err := a.store.CountUnread(ctx.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": count}, nil
}

// List handles notifications.list
func (a *NotificationsAPI) List(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	var p struct {
		Limit int `json:"limit"`
	}
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	notifications, err := a.store.ListRecent(ctx.Request.Context(), userID, limit)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// MarkRead handles notifications.mark_read
func (a *NotificationsAPI) MarkRead(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := a.store.MarkAllRead(ctx.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"updated": updated}, nil
}
