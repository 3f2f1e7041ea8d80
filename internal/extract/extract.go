// Package extract contains the pure field extractors used by product
// normalization. Extractors never fail: absence of a signal yields the
// documented default, not an error.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"catalog-sync-service/internal/models"
)

// NoveltyWindow is the recency threshold for flagging an item as new.
const NoveltyWindow = 30 * 24 * time.Hour

// fabricVocabulary is a fixed priority list: hits are returned in this
// order, so the first element of the result is the primary fabric.
var fabricVocabulary = []string{
	"cotton", "linen", "silk", "wool", "cashmere", "leather",
	"denim", "polyester", "viscose", "rayon", "nylon", "modal",
}

// Fabric returns every fabric-vocabulary hit found in the description,
// in priority order. Empty when nothing matches.
func Fabric(description string) []string {
	desc := strings.ToLower(description)
	var found []string
	for _, f := range fabricVocabulary {
		if strings.Contains(desc, f) {
			found = append(found, f)
		}
	}
	return found
}

var sizePattern = regexp.MustCompile(`\b(XXS|XS|S|M|L|XL|XXL|0|2|4|6|8|10|12|14|16)\b`)

// Sizes returns every distinct recognized size token in the description:
// the letter grid XXS..XXL plus even numeric sizes 0-16.
func Sizes(description string) []string {
	matches := sizePattern.FindAllString(description, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var sizes []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			sizes = append(sizes, m)
		}
	}
	return sizes
}

var (
	femaleKeywords = []string{"women", "woman", "womens", "female", "girl", "ladies"}
	maleKeywords   = []string{"men", "man", "mens", "male", "boy"}
)

// Gender infers a gender classification from the product text. The
// female family is checked first because its keywords contain the male
// ones ("women" contains "men"). Default is unisex.
func Gender(name, category, description string) models.Gender {
	text := strings.ToLower(name + " " + category + " " + description)
	for _, kw := range femaleKeywords {
		if strings.Contains(text, kw) {
			return models.GenderFemale
		}
	}
	for _, kw := range maleKeywords {
		if strings.Contains(text, kw) {
			return models.GenderMale
		}
	}
	return models.GenderUnisex
}

// Occasion classifies product text into an occasion bucket, defaulting
// to everyday.
func Occasion(name, description string) string {
	text := strings.ToLower(name + " " + description)
	switch {
	case containsAny(text, "wedding", "gala", "evening"):
		return "formal"
	case containsAny(text, "office", "work"):
		return "work"
	case containsAny(text, "beach", "vacation", "holiday"):
		return "resort"
	case containsAny(text, "party", "cocktail"):
		return "party"
	default:
		return models.DefaultOccasion
	}
}

// Season classifies product text into a season bucket, defaulting to
// all-season.
func Season(name, description string) string {
	text := strings.ToLower(name + " " + description)
	switch {
	case containsAny(text, "linen", "shorts", "swim"):
		return "summer"
	case containsAny(text, "wool", "cashmere", "coat", "sweater"):
		return "winter"
	default:
		return models.DefaultSeason
	}
}

// IsNew reports whether the item was synced within the novelty window.
// A missing timestamp is never treated as novelty.
func IsNew(lastSynced *time.Time, now time.Time) bool {
	if lastSynced == nil {
		return false
	}
	return now.Sub(*lastSynced) <= NoveltyWindow
}

// OnSale reports whether the current price undercuts the original list
// price. False unless both prices are known.
func OnSale(price, originalPrice *float64) bool {
	if price == nil || originalPrice == nil {
		return false
	}
	return *price < *originalPrice
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// Price parses a feed price value that may be a number or a
// currency-formatted string. Unparseable values yield nil.
func Price(raw interface{}) *float64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		return &v
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case string:
		cleaned := nonNumeric.ReplaceAllString(v, "")
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
