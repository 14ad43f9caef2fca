// Package browse filters, sorts and pages an in-memory set of listings for
// the back-office views. It performs no I/O.
package browse

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/autoci/marketplace/internal/models"
)

// Filter and sort values accepted by Apply
const (
	All = "all"

	Boosted = "boosted"
	Normal  = "normal"

	SortDate  = "date"
	SortPrice = "price"
	SortViews = "views"
	SortTitle = "title"

	Asc  = "asc"
	Desc = "desc"

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query configures one pass of the engine
type Query struct {
	SearchTerm    string `json:"search_term"`
	StatusFilter  string `json:"status"`
	BoostedFilter string `json:"boosted"`
	SortBy        string `json:"sort_by"`
	SortOrder     string `json:"sort_order"`
	Page          int    `json:"page"`
	PageSize      int    `json:"page_size"`
}

// Result is one page plus the aggregates of the whole filtered set
type Result struct {
	PageItems      []models.Listing             `json:"page_items"`
	TotalCount     int                          `json:"total_count"`
	CountsByStatus map[models.ListingStatus]int `json:"counts_by_status"`
}

// Apply runs search, status and boost filters over listings, sorts the
// survivors and returns the requested page. Status counts are taken over the
// filtered set before pagination. listings is not modified.
func Apply(listings []models.Listing, q Query, now time.Time) Result {
	filtered := make([]models.Listing, 0, len(listings))
	term := strings.ToLower(strings.TrimSpace(q.SearchTerm))
	for i := range listings {
		l := &listings[i]
		if term != "" && !matches(l, term) {
			continue
		}
		if q.StatusFilter != "" && q.StatusFilter != All && string(l.Status) != q.StatusFilter {
			continue
		}
		switch q.BoostedFilter {
		case Boosted:
			if !l.IsBoostActive(now) {
				continue
			}
		case Normal:
			if l.IsBoostActive(now) {
				continue
			}
		}
		filtered = append(filtered, *l)
	}

	sortListings(filtered, q.SortBy, q.SortOrder)

	counts := make(map[models.ListingStatus]int, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		counts[s] = 0
	}
	for i := range filtered {
		counts[filtered[i].Status]++
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return Result{
		PageItems:      pageOf(filtered, page, size),
		TotalCount:     len(filtered),
		CountsByStatus: counts,
	}
}

func matches(l *models.Listing, term string) bool {
	for _, field := range []string{l.Title, l.Brand, l.Model, l.Location} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// pageOf returns the 1-based page of size items. page-1 is compared against
// len/size before multiplying so huge page numbers cannot overflow.
func pageOf(listings []models.Listing, page, size int) []models.Listing {
	if page-1 > len(listings)/size {
		return []models.Listing{}
	}
	start := (page - 1) * size
	if start >= len(listings) {
		return []models.Listing{}
	}
	end := len(listings)
	if size < end-start {
		end = start + size
	}
	return listings[start:end]
}

func sortListings(listings []models.Listing, sortBy, order string) {
	var cmp func(a, b *models.Listing) int
	switch sortBy {
	case SortPrice:
		cmp = func(a, b *models.Listing) int { return compareInt(a.Price, b.Price) }
	case SortViews:
		cmp = func(a, b *models.Listing) int { return compareInt(a.DisplayViews(), b.DisplayViews()) }
	case SortTitle:
		col := collate.New(language.French)
		cmp = func(a, b *models.Listing) int { return col.CompareString(a.Title, b.Title) }
	default:
		cmp = func(a, b *models.Listing) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}

	desc := order != Asc
	sort.SliceStable(listings, func(i, j int) bool {
		c := cmp(&listings[i], &listings[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
