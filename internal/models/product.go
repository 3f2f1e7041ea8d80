package models

import (
	"time"

	"github.com/google/uuid"
)

// Gender is the inferred or explicit gender classification of a product
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
	GenderUnisex Gender = "unisex"
)

// Default classifications used when no signal is found in the feed text
const (
	DefaultOccasion = "everyday"
	DefaultSeason   = "all-season"
)

// Product is the canonical catalog record produced by normalization.
// ProductID is the sole identity: two feed items sharing a ProductID
// overwrite each other on upsert.
type Product struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProductID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_products_product_id" json:"productId"`

	Name          string `gorm:"type:varchar(500);not null;default:''" json:"name"`
	Brand         string `gorm:"type:varchar(255);not null;default:'';index:idx_products_brand" json:"brand"`
	Description   string `gorm:"type:text;not null;default:''" json:"description"`
	Category      string `gorm:"type:varchar(255);not null;default:'';index:idx_products_category" json:"category"`
	Color         string `gorm:"type:varchar(100);not null;default:''" json:"color"`
	ImageURL      string `gorm:"type:varchar(1000);not null;default:''" json:"imageUrl"`
	ProductLink   string `gorm:"type:varchar(1000);not null;default:''" json:"productLink"`
	AffiliateLink string `gorm:"type:varchar(1000);not null;default:''" json:"affiliateLink"`

	// Price is nil when the feed value was absent or unparseable
	Price         *float64 `json:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Currency      string   `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`

	// Inferred attributes. Fabric keeps every vocabulary hit in priority
	// order; the first element is the primary fabric.
	Fabric   StringArray `gorm:"type:jsonb;default:'[]'" json:"fabric"`
	Sizes    StringArray `gorm:"type:jsonb;default:'[]'" json:"sizes"`
	Gender   Gender      `gorm:"type:varchar(20);not null;default:'unisex';index:idx_products_gender" json:"gender"`
	Occasion string      `gorm:"type:varchar(50);not null;default:'everyday'" json:"occasion"`
	Season   string      `gorm:"type:varchar(50);not null;default:'all-season'" json:"season"`

	InStock bool        `gorm:"not null;default:true;index:idx_products_in_stock" json:"inStock"`
	Tags    StringArray `gorm:"type:jsonb;default:'[]'" json:"tags"`
	Style   string      `gorm:"type:varchar(255);not null;default:''" json:"style"`
	IsNew   bool        `gorm:"not null;default:false" json:"isNew"`
	OnSale  bool        `gorm:"not null;default:false" json:"onSale"`

	LastSynced time.Time `gorm:"not null;index:idx_products_last_synced" json:"lastSynced"`
	FeedSource string    `gorm:"type:varchar(255);not null;default:'';index:idx_products_feed_source" json:"feedSource"`

	// Embedding is set by the enrichment pass; NULL until computed.
	// Its absence never blocks persistence of the rest of the record.
	Embedding Vector `gorm:"type:jsonb" json:"embedding,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for Product
func (Product) TableName() string {
	return "products"
}

// HasEmbedding reports whether the enrichment pass has produced a vector
func (p *Product) HasEmbedding() bool {
	return len(p.Embedding) > 0
}
