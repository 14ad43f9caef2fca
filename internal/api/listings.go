package api

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autoci/marketplace/internal/api/middleware"
	"github.com/autoci/marketplace/internal/browse"
	"github.com/autoci/marketplace/internal/derived"
	"github.com/autoci/marketplace/internal/models"
)

const (
	comparableYearSpread = 2
	comparableLimit      = 200
)

// RankedFetcher returns active listings with live boosts first
type RankedFetcher interface {
	FetchRankedListings(ctx context.Context, filters models.ListingFilters, limit int) ([]models.Listing, error)
}

// ListingStore is the listing data the API reads directly
type ListingStore interface {
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	ListAll(ctx context.Context, limit int) ([]models.Listing, error)
	ComparablePrices(ctx context.Context, brand, model string, year, yearSpread int, excludeID string, limit int) ([]int64, error)
}

// ProfileStore loads account profiles
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

// ListingsAPI provides listing retrieval, pricing and admin methods
type ListingsAPI struct {
	ranked        RankedFetcher
	listings      ListingStore
	profiles      ProfileStore
	supersetLimit int
	now           func() time.Time
}

// NewListingsAPI creates a new listings API
func NewListingsAPI(ranked RankedFetcher, listings ListingStore, profiles ProfileStore, supersetLimit int) *ListingsAPI {
	return &ListingsAPI{
		ranked:        ranked,
		listings:      listings,
		profiles:      profiles,
		supersetLimit: supersetLimit,
		now:           time.Now,
	}
}

type rankedParams struct {
	Filters models.ListingFilters `json:"filters"`
	Limit   int                   `json:"limit"`
}

// GetRanked handles listings.get_ranked
func (a *ListingsAPI) GetRanked(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p rankedParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if p.Limit < 0 {
		return nil, InvalidParams("limit must not be negative")
	}
	return a.ranked.FetchRankedListings(ctx.Request.Context(), p.Filters, p.Limit)
}

// GetListing handles listings.get. Listings that are not active are only
// visible to their owner; anyone else gets a null result.
func (a *ListingsAPI) GetListing(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if p.ID = strings.TrimSpace(p.ID); p.ID == "" {
		return nil, InvalidParams("missing required parameter: id")
	}

	listing, err := a.listings.GetByID(ctx.Request.Context(), p.ID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, nil
	}
	if listing.Status != models.StatusActive && listing.UserID != middleware.UserID(ctx) {
		return nil, nil
	}
	return listing, nil
}

type comparablesParams struct {
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	Price     int64  `json:"price"`
	ExcludeID string `json:"exclude_id"`
}

func (a *ListingsAPI) comparablePrices(ctx *gin.Context, params json.RawMessage) ([]int64, *comparablesParams, error) {
	var p comparablesParams
	if err := bindParams(params, &p); err != nil {
		return nil, nil, err
	}
	p.Brand = strings.TrimSpace(p.Brand)
	p.Model = strings.TrimSpace(p.Model)
	if p.Brand == "" || p.Model == "" {
		return nil, nil, InvalidParams("missing required parameters: brand, model")
	}
	if p.Year < 0 || p.Price < 0 {
		return nil, nil, InvalidParams("year and price must not be negative")
	}

	prices, err := a.listings.ComparablePrices(ctx.Request.Context(), p.Brand, p.Model, p.Year, comparableYearSpread, p.ExcludeID, comparableLimit)
	if err != nil {
		return nil, nil, err
	}
	return prices, &p, nil
}

// GetComparables handles listings.get_comparables
func (a *ListingsAPI) GetComparables(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	prices, _, err := a.comparablePrices(ctx, params)
	if err != nil {
		return nil, err
	}
	return derived.MarketStatsFrom(prices), nil
}

// SuggestPrice handles pricing.suggest
func (a *ListingsAPI) SuggestPrice(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	prices, p, err := a.comparablePrices(ctx, params)
	if err != nil {
		return nil, err
	}
	return derived.Suggest(prices, p.Price), nil
}

// ListForAdmin handles admin.list_listings
func (a *ListingsAPI) ListForAdmin(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	userID := middleware.UserID(ctx)
	if userID == "" {
		return nil, Forbidden("authentication required")
	}
	profile, err := a.profiles.GetByID(ctx.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.Role != models.RoleAdmin {
		return nil, Forbidden("admin role required")
	}

	var q browse.Query
	if err := bindParams(params, &q); err != nil {
		return nil, err
	}

	listings, err := a.listings.ListAll(ctx.Request.Context(), a.supersetLimit)
	if err != nil {
		return nil, err
	}
	return browse.Apply(listings, q, a.now()), nil
}
