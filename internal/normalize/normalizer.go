// Package normalize maps raw feed items onto the canonical product
// schema. Normalization is total: any item, however malformed, produces
// a product. Fields the feed supplies explicitly win; everything else is
// derived from the item's text.
package normalize

import (
	"strings"
	"time"

	"catalog-sync-service/internal/clients/feed"
	"catalog-sync-service/internal/extract"
	"catalog-sync-service/internal/models"
)

// Options tunes normalization behavior
type Options struct {
	// DefaultCurrency is applied when the feed omits currency
	DefaultCurrency string
	// FeedSource labels which feed the item came from
	FeedSource string
}

// Normalize converts a raw feed item into a product. now anchors the
// novelty window and becomes the product's sync timestamp.
func Normalize(item feed.Item, now time.Time, opts Options) models.Product {
	price := extract.Price(item.Price)
	originalPrice := extract.Price(item.OriginalPrice)

	currency := strings.ToUpper(strings.TrimSpace(item.Currency))
	if currency == "" {
		currency = opts.DefaultCurrency
	}
	if currency == "" {
		currency = "USD"
	}

	fabric := splitList(item.Fabric)
	if len(fabric) == 0 {
		fabric = extract.Fabric(item.Description)
	}

	sizes := extract.Sizes(item.Description)

	gender := parseGender(item.Gender)
	if gender == "" {
		gender = extract.Gender(item.Name, item.Category, item.Description)
	}

	occasion := strings.ToLower(strings.TrimSpace(item.Occasion))
	if occasion == "" {
		occasion = extract.Occasion(item.Name, item.Description)
	}

	season := strings.ToLower(strings.TrimSpace(item.Season))
	if season == "" {
		season = extract.Season(item.Name, item.Description)
	}

	inStock := true
	if item.InStock != nil {
		inStock = *item.InStock
	}

	// Novelty is judged on the feed's own timestamp: an item with no
	// usable lastSynced is never flagged new. The stored timestamp still
	// defaults to now so the row records when we saw it.
	syncedAt := parseTimestamp(item.LastSynced)
	lastSynced := now
	if syncedAt != nil {
		lastSynced = *syncedAt
	}

	feedSource := item.FeedSource
	if feedSource == "" {
		feedSource = opts.FeedSource
	}

	productLink := item.ProductLink
	if productLink == "" {
		productLink = item.AffiliateLink
	}

	return models.Product{
		ProductID:     item.Identity(),
		Name:          strings.TrimSpace(item.Name),
		Brand:         strings.TrimSpace(item.Brand),
		Description:   strings.TrimSpace(item.Description),
		Category:      strings.ToLower(strings.TrimSpace(item.Category)),
		Color:         strings.ToLower(strings.TrimSpace(item.Color)),
		ImageURL:      item.ImageURL,
		ProductLink:   productLink,
		AffiliateLink: item.AffiliateLink,
		Price:         price,
		OriginalPrice: originalPrice,
		Currency:      currency,
		Fabric:        fabric,
		Sizes:         sizes,
		Gender:        gender,
		Occasion:      occasion,
		Season:        season,
		InStock:       inStock,
		Tags:          cleanTags(item.Tags),
		Style:         strings.ToLower(strings.TrimSpace(item.Style)),
		IsNew:         extract.IsNew(syncedAt, now),
		OnSale:        extract.OnSale(price, originalPrice),
		LastSynced:    lastSynced,
		FeedSource:    feedSource,
	}
}

func parseGender(raw string) models.Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "female", "women", "womens", "woman", "f":
		return models.GenderFemale
	case "male", "men", "mens", "man", "m":
		return models.GenderMale
	case "unisex":
		return models.GenderUnisex
	}
	return ""
}

// parseTimestamp accepts RFC 3339 and date-only feed timestamps,
// returning nil for anything absent or unparseable.
func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cleanTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
