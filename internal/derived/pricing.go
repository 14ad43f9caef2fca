package derived

import (
	"math"
	"sort"
)

// PricePosition places a price relative to comparable listings
type PricePosition string

// Price positions, from cheapest to most expensive
const (
	BelowMarket PricePosition = "below_market"
	Competitive PricePosition = "competitive"
	AboveMarket PricePosition = "above_market"
	Premium     PricePosition = "premium"
)

const (
	lowerBand = 0.9
	upperBand = 1.1
)

// MarketStats summarises the prices of comparable listings
type MarketStats struct {
	Count  int   `json:"count"`
	Median int64 `json:"median"`
	Min    int64 `json:"min"`
	Max    int64 `json:"max"`
}

// MarketStatsFrom computes stats over the positive prices. The median of an
// even count is the mean of the two middle prices.
func MarketStatsFrom(prices []int64) MarketStats {
	valid := make([]int64, 0, len(prices))
	for _, p := range prices {
		if p > 0 {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return MarketStats{}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })

	n := len(valid)
	median := valid[n/2]
	if n%2 == 0 {
		median = valid[n/2-1] + (valid[n/2]-valid[n/2-1])/2
	}
	return MarketStats{Count: n, Median: median, Min: valid[0], Max: valid[n-1]}
}

// ClassifyPricePosition maps price to exactly one position. Below 90% of the
// median is below market, up to 110% is competitive, up to the larger of the
// market maximum and 110% is above market, and anything higher is premium.
// Without a median the midpoint of min and max is the reference; without any
// reference every price is competitive. The result is monotonic in price.
func ClassifyPricePosition(price, median, marketMin, marketMax int64) PricePosition {
	ref := float64(median)
	if median <= 0 {
		switch {
		case marketMin > 0 && marketMax > 0:
			ref = (float64(marketMin) + float64(marketMax)) / 2
		case marketMax > 0:
			ref = float64(marketMax)
		case marketMin > 0:
			ref = float64(marketMin)
		default:
			return Competitive
		}
	}

	p := float64(price)
	ceiling := math.Max(float64(marketMax), upperBand*ref)
	switch {
	case p < lowerBand*ref:
		return BelowMarket
	case p <= upperBand*ref:
		return Competitive
	case p <= ceiling:
		return AboveMarket
	default:
		return Premium
	}
}

// SuggestPriceRange returns the competitive band around the median, or zeros
// when there are no comparables.
func SuggestPriceRange(stats MarketStats) (low, high int64) {
	if stats.Median <= 0 {
		return 0, 0
	}
	m := float64(stats.Median)
	return int64(math.Round(lowerBand * m)), int64(math.Round(upperBand * m))
}

// PriceSuggestion is the pricing advice for a listing draft
type PriceSuggestion struct {
	Stats    MarketStats    `json:"stats"`
	Low      int64          `json:"suggested_min"`
	High     int64          `json:"suggested_max"`
	Position *PricePosition `json:"position,omitempty"`
}

// Suggest builds pricing advice from comparable prices. The position is only
// set for a positive price.
func Suggest(comparables []int64, price int64) PriceSuggestion {
	stats := MarketStatsFrom(comparables)
	low, high := SuggestPriceRange(stats)
	s := PriceSuggestion{Stats: stats, Low: low, High: high}
	if price > 0 {
		pos := ClassifyPricePosition(price, stats.Median, stats.Min, stats.Max)
		s.Position = &pos
	}
	return s
}
