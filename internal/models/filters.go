package models

import "time"

// ListingFilters are the public search filters. Field order is part of the
// cache key, keep it stable.
type ListingFilters struct {
	Brand        string `json:"brand,omitempty"`
	Model        string `json:"model,omitempty"`
	PriceMin     *int64 `json:"price_min,omitempty"`
	PriceMax     *int64 `json:"price_max,omitempty"`
	YearMin      *int   `json:"year_min,omitempty"`
	YearMax      *int   `json:"year_max,omitempty"`
	FuelType     string `json:"fuel_type,omitempty"`
	Transmission string `json:"transmission,omitempty"`
	Condition    string `json:"condition,omitempty"`
	Location     string `json:"location,omitempty"`
	Search       string `json:"search,omitempty"`
}

// ListingQuery narrows a query over active listings beyond the public filters.
type ListingQuery struct {
	IsBoosted   *bool
	BoostAfter  *time.Time
	BoostColumn string
	ExcludeIDs  []string
	OrderBy     string
	Limit       int
}
