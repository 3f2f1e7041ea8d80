package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"catalog-sync-service/internal/clients/feed"
	"catalog-sync-service/internal/models"
)

var testOpts = Options{DefaultCurrency: "USD", FeedSource: "affiliate-feed"}

func TestNormalizeEmptyItem(t *testing.T) {
	// Normalization must be total: a fully empty item still produces a
	// valid product
	now := time.Now()
	product := Normalize(feed.Item{}, now, testOpts)

	assert.Empty(t, product.ProductID)
	assert.Equal(t, "USD", product.Currency)
	assert.Equal(t, models.GenderUnisex, product.Gender)
	assert.Equal(t, "everyday", product.Occasion)
	assert.Equal(t, "all-season", product.Season)
	assert.True(t, product.InStock)
	assert.Nil(t, product.Price)
	assert.Equal(t, now, product.LastSynced)
	assert.Equal(t, "affiliate-feed", product.FeedSource)
}

func TestNormalizeExplicitValuesWin(t *testing.T) {
	now := time.Now()
	inStock := false
	item := feed.Item{
		ProductID:   "sku-1",
		Name:        "Wedding guest dress",
		Description: "Cozy wool sweater dress in sizes S and M",
		Gender:      "male",
		Occasion:    "Party",
		Season:      "Summer",
		Fabric:      "Silk, Cotton",
		Currency:    "eur",
		InStock:     &inStock,
	}

	product := Normalize(item, now, testOpts)

	// Explicit feed values beat what the text extractors would say
	assert.Equal(t, models.GenderMale, product.Gender)
	assert.Equal(t, "party", product.Occasion)
	assert.Equal(t, "summer", product.Season)
	assert.Equal(t, []string{"silk", "cotton"}, []string(product.Fabric))
	assert.Equal(t, "EUR", product.Currency)
	assert.False(t, product.InStock)

	// Sizes are always derived from the description
	assert.Equal(t, []string{"S", "M"}, []string(product.Sizes))
}

func TestNormalizeDerivedFields(t *testing.T) {
	now := time.Now()
	item := feed.Item{
		ProductID:     "sku-2",
		Name:          "Women's linen beach dress",
		Description:   "Light linen dress for your vacation",
		Price:         "$120.00",
		OriginalPrice: 200.0,
	}

	product := Normalize(item, now, testOpts)

	assert.Equal(t, models.GenderFemale, product.Gender)
	assert.Equal(t, "resort", product.Occasion)
	assert.Equal(t, "summer", product.Season)
	assert.Equal(t, []string{"linen"}, []string(product.Fabric))
	if assert.NotNil(t, product.Price) {
		assert.InDelta(t, 120.0, *product.Price, 0.001)
	}
	assert.True(t, product.OnSale)
}

func TestNormalizeIdentityFallsBackToID(t *testing.T) {
	product := Normalize(feed.Item{ID: "legacy-9"}, time.Now(), testOpts)
	assert.Equal(t, "legacy-9", product.ProductID)
}

func TestNormalizeTimestamps(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("RFC3339", func(t *testing.T) {
		product := Normalize(feed.Item{LastSynced: "2026-07-20T10:30:00Z"}, now, testOpts)
		assert.Equal(t, time.Date(2026, 7, 20, 10, 30, 0, 0, time.UTC), product.LastSynced)
		assert.True(t, product.IsNew)
	})

	t.Run("date only", func(t *testing.T) {
		product := Normalize(feed.Item{LastSynced: "2026-01-15"}, now, testOpts)
		assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), product.LastSynced)
		assert.False(t, product.IsNew)
	})

	t.Run("unparseable falls back to now", func(t *testing.T) {
		product := Normalize(feed.Item{LastSynced: "yesterday"}, now, testOpts)
		assert.Equal(t, now, product.LastSynced)
	})
}

func TestNormalizeNovelty(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("recent sync is new", func(t *testing.T) {
		product := Normalize(feed.Item{LastSynced: "2026-07-25T00:00:00Z"}, now, testOpts)
		assert.True(t, product.IsNew)
	})

	t.Run("stale sync is not new", func(t *testing.T) {
		product := Normalize(feed.Item{LastSynced: "2026-01-01T00:00:00Z"}, now, testOpts)
		assert.False(t, product.IsNew)
	})

	// Novelty needs evidence: the timestamp we default in for the
	// stored row must not make the item look fresh.
	t.Run("missing timestamp is not new", func(t *testing.T) {
		product := Normalize(feed.Item{}, now, testOpts)
		assert.False(t, product.IsNew)
		assert.Equal(t, now, product.LastSynced)
	})

	t.Run("unparseable timestamp is not new", func(t *testing.T) {
		product := Normalize(feed.Item{LastSynced: "yesterday"}, now, testOpts)
		assert.False(t, product.IsNew)
	})
}

func TestNormalizeTags(t *testing.T) {
	product := Normalize(feed.Item{
		Tags: []string{"Summer", "  summer ", "", "Boho"},
	}, time.Now(), testOpts)
	assert.Equal(t, []string{"summer", "boho"}, []string(product.Tags))
}

func TestNormalizeProductLinkFallback(t *testing.T) {
	product := Normalize(feed.Item{AffiliateLink: "https://example.com/aff/1"}, time.Now(), testOpts)
	assert.Equal(t, "https://example.com/aff/1", product.ProductLink)
	assert.Equal(t, "https://example.com/aff/1", product.AffiliateLink)
}
