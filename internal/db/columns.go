package db

import (
	"sync"

	"github.com/autoci/marketplace/internal/schema"
)

// ColumnResolver remembers which boost expiry column the deployed schema
// answered to last, so later queries try that name first. A pinned resolver
// never changes its answer.
type ColumnResolver struct {
	mu      sync.RWMutex
	current string
	pinned  bool
}

// NewColumnResolver creates a resolver. A non-empty pinned column fixes the
// answer; otherwise it starts from boost_until.
func NewColumnResolver(pinned string) *ColumnResolver {
	if schema.IsBoostColumn(pinned) {
		return &ColumnResolver{current: pinned, pinned: true}
	}
	return &ColumnResolver{current: schema.BoostUntil}
}

// Current returns the column to try first
func (r *ColumnResolver) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Prefer records that column just worked
func (r *ColumnResolver) Prefer(column string) {
	if !schema.IsBoostColumn(column) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pinned {
		r.current = column
	}
}

// Pinned reports whether the column comes from configuration
func (r *ColumnResolver) Pinned() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pinned
}
