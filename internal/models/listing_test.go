package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBoostActive(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	tests := []struct {
		name    string
		boosted bool
		until   *time.Time
		want    bool
	}{
		{"live boost", true, &later, true},
		{"expired boost", true, &earlier, false},
		{"expires exactly now", true, &now, false},
		{"flag without expiry", true, nil, false},
		{"expiry without flag", false, &later, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Listing{IsBoosted: tt.boosted, BoostUntil: tt.until}
			assert.Equal(t, tt.want, l.IsBoostActive(now))
		})
	}
}

func TestDisplayViews(t *testing.T) {
	l := Listing{Views: 12}
	assert.Equal(t, int64(12), l.DisplayViews())

	l.ViewsTracking = []ViewCount{{Count: 40}}
	assert.Equal(t, int64(40), l.DisplayViews())

	l.ViewsTracking = []ViewCount{{Count: 3}}
	assert.Equal(t, int64(12), l.DisplayViews())
}

func TestAfterFind(t *testing.T) {
	var l Listing
	require.NoError(t, l.AfterFind(nil))
	assert.Nil(t, l.ViewsTracking)

	tracked := int64(7)
	l.TrackedViews = &tracked
	require.NoError(t, l.AfterFind(nil))
	assert.Equal(t, []ViewCount{{Count: 7}}, l.ViewsTracking)
}

func TestPrimaryImage(t *testing.T) {
	var l Listing
	assert.Equal(t, "", l.PrimaryImage())

	l.Images = []string{"front.jpg", "back.jpg"}
	assert.Equal(t, "front.jpg", l.PrimaryImage())
}
