package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autoci/marketplace/internal/api/middleware"
	"github.com/autoci/marketplace/internal/boost"
	"github.com/autoci/marketplace/internal/models"
)

// BoostPurchaser sells boosts
type BoostPurchaser interface {
	Purchase(ctx context.Context, userID, listingID string, days int) (*models.Boost, error)
}

// BoostAPI provides boost purchase methods
type BoostAPI struct {
	boosts BoostPurchaser
}

// NewBoostAPI creates a new boost API
func NewBoostAPI(boosts BoostPurchaser) *BoostAPI {
	return &BoostAPI{boosts: boosts}
}

type purchaseParams struct {
	ListingID    string `json:"listing_id"`
	DurationDays int    `json:"duration_days"`
}

// Purchase handles boost.purchase
func (a *BoostAPI) Purchase(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	userID := middleware.UserID(ctx)
	if userID == "" {
		return nil, Forbidden("authentication required")
	}

	var p purchaseParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	p.ListingID = strings.TrimSpace(p.ListingID)
	if p.ListingID == "" {
		return nil, InvalidParams("missing required parameter: listing_id")
	}
	if p.DurationDays <= 0 {
		return nil, InvalidParams("duration_days must be positive")
	}

	b, err := a.boosts.Purchase(ctx.Request.Context(), userID, p.ListingID, p.DurationDays)
	if err != nil {
		if errors.Is(err, boost.ErrUnknownDuration) {
			return nil, InvalidParams("%s", err.Error())
		}
		if boost.IsRejection(err) {
			return nil, Forbidden(err.Error())
		}
		return nil, err
	}
	return b, nil
}
