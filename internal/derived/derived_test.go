package derived

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoci/marketplace/internal/models"
)

func TestIsProfileComplete(t *testing.T) {
	tests := []struct {
		name    string
		profile models.Profile
		want    bool
		missing []string
	}{
		{"placeholders", models.Profile{FullName: "Utilisateur", Phone: "+225 00 00 00 00 00"}, false, []string{"full_name", "phone"}},
		{"complete", models.Profile{FullName: "Jean Dupont", Phone: "+225 07 12 34 56 78"}, true, nil},
		{"empty name", models.Profile{FullName: "  ", Phone: "+225 07 12 34 56 78"}, false, []string{"full_name"}},
		{"empty phone", models.Profile{FullName: "Awa Koné"}, false, []string{"phone"}},
		{"placeholder phone only", models.Profile{FullName: "Awa Koné", Phone: "00 00 00 00"}, false, []string{"phone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProfileComplete(tt.profile))
			assert.Equal(t, tt.missing, MissingProfileFields(tt.profile))
		})
	}
}

func TestSanitizeRedirectURL(t *testing.T) {
	allowed := []string{"https://autoci.example", "https://www.autoci.example/"}
	tests := []struct {
		name    string
		raw     string
		devMode bool
		want    string
		ok      bool
	}{
		{"root relative", "/dashboard/vendeur", false, "/dashboard/vendeur", true},
		{"root relative with query", "/annonces?page=2", false, "/annonces?page=2", true},
		{"protocol relative", "//evil.example", false, "", false},
		{"embedded double slash", "/redirect//evil.example", false, "", false},
		{"backslash", `/\evil.example`, false, "", false},
		{"tab between slashes", "/\t/evil.example", false, "", false},
		{"newline between slashes", "/\n/evil.example", false, "", false},
		{"carriage return between slashes", "/\r/evil.example", false, "", false},
		{"control in absolute", "https://autoci.example/\x00x", false, "", false},
		{"foreign absolute", "https://evil.example/phish", false, "", false},
		{"allowed absolute", "https://autoci.example/compte", false, "https://autoci.example/compte", true},
		{"allowed with trailing slash config", "https://www.autoci.example/x", false, "https://www.autoci.example/x", true},
		{"allowed host wrong scheme", "http://autoci.example/compte", false, "", false},
		{"userinfo trick", "https://autoci.example@evil.example/", false, "", false},
		{"javascript scheme", "javascript:alert(1)", false, "", false},
		{"localhost outside dev", "http://localhost:3000/x", false, "", false},
		{"localhost in dev", "http://localhost:3000/x", true, "http://localhost:3000/x", true},
		{"empty", "", false, "", false},
		{"bare path", "dashboard", false, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SanitizeRedirectURL(tt.raw, allowed, tt.devMode)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarketStatsFrom(t *testing.T) {
	assert.Equal(t, MarketStats{}, MarketStatsFrom(nil))
	assert.Equal(t, MarketStats{}, MarketStatsFrom([]int64{0, -5}))

	stats := MarketStatsFrom([]int64{300, 100, 200})
	assert.Equal(t, MarketStats{Count: 3, Median: 200, Min: 100, Max: 300}, stats)

	stats = MarketStatsFrom([]int64{400, 100, 0, 200, 300})
	assert.Equal(t, MarketStats{Count: 4, Median: 250, Min: 100, Max: 400}, stats)
}

func TestClassifyPricePosition(t *testing.T) {
	const median, lo, hi = 1000000, 700000, 1500000
	tests := []struct {
		price int64
		want  PricePosition
	}{
		{500000, BelowMarket},
		{899999, BelowMarket},
		{900000, Competitive},
		{1000000, Competitive},
		{1090000, Competitive},
		{1200000, AboveMarket},
		{1500000, AboveMarket},
		{1500001, Premium},
		{9000000, Premium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPricePosition(tt.price, median, lo, hi), "price %d", tt.price)
	}
}

func TestClassifyPricePositionFallbacks(t *testing.T) {
	// midpoint of min and max stands in for a missing median
	assert.Equal(t, BelowMarket, ClassifyPricePosition(100, 0, 200, 400))
	assert.Equal(t, Competitive, ClassifyPricePosition(300, 0, 200, 400))
	assert.Equal(t, AboveMarket, ClassifyPricePosition(400, 0, 200, 400))
	assert.Equal(t, Premium, ClassifyPricePosition(401, 0, 200, 400))

	assert.Equal(t, Competitive, ClassifyPricePosition(12345, 0, 0, 0))
}

func TestClassifyPricePositionMonotonic(t *testing.T) {
	rank := map[PricePosition]int{BelowMarket: 0, Competitive: 1, AboveMarket: 2, Premium: 3}
	refs := [][3]int64{{1000, 800, 1200}, {1000, 0, 0}, {0, 500, 5000}, {5000000, 4000000, 5200000}}
	for _, ref := range refs {
		prev := -1
		for price := int64(1); price <= 20000000; price += 997 {
			pos := ClassifyPricePosition(price, ref[0], ref[1], ref[2])
			r, ok := rank[pos]
			require.True(t, ok, "unknown position %q", pos)
			require.GreaterOrEqual(t, r, prev, "position went down at price %d for %v", price, ref)
			prev = r
		}
	}
}

func TestSuggest(t *testing.T) {
	s := Suggest([]int64{1000000, 1200000, 800000}, 1500000)
	assert.Equal(t, int64(1000000), s.Stats.Median)
	assert.Equal(t, int64(900000), s.Low)
	assert.Equal(t, int64(1100000), s.High)
	require.NotNil(t, s.Position)
	assert.Equal(t, Premium, *s.Position)

	s = Suggest(nil, 0)
	assert.Zero(t, s.Low)
	assert.Zero(t, s.High)
	assert.Nil(t, s.Position)
}
