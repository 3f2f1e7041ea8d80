package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"catalog-sync-service/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	latestCacheKey = "products:latest"
	latestCacheTTL = 5 * time.Minute
	latestLimit    = 50

	defaultSearchLimit = 60
	maxSearchLimit     = 200
)

// ProductRepository handles product persistence and read queries
type ProductRepository struct {
	db    *gorm.DB
	cache *redis.Client
}

// NewProductRepository creates a new product repository. cache may be
// nil, in which case reads always hit the database.
func NewProductRepository(db *gorm.DB, cache *redis.Client) *ProductRepository {
	return &ProductRepository{db: db, cache: cache}
}

// upsertColumns are the fields refreshed on every sync. The embedding
// is deliberately excluded so a re-sync never clobbers one computed in
// an earlier run.
var upsertColumns = []string{
	"name", "brand", "description", "category", "color",
	"image_url", "product_link", "affiliate_link",
	"price", "original_price", "currency",
	"fabric", "sizes", "gender", "occasion", "season",
	"in_stock", "tags", "style", "is_new", "on_sale",
	"last_synced", "feed_source", "updated_at",
}

// Upsert inserts a product or refreshes the existing row keyed by
// product_id
func (r *ProductRepository) Upsert(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(product).Error
}

// UpdateEmbedding stores a freshly computed embedding for a product
func (r *ProductRepository) UpdateEmbedding(ctx context.Context, productID string, embedding models.Vector) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ?", productID).
		Update("embedding", embedding).Error
}

// GetByProductID retrieves a product by its feed identifier
func (r *ProductRepository) GetByProductID(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetByProductIDs retrieves products for a set of feed identifiers.
// The result preserves the input order; missing IDs are skipped.
func (r *ProductRepository) GetByProductIDs(ctx context.Context, productIDs []string) ([]models.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	var products []models.Product
	if err := r.db.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}

	ordered := make([]models.Product, 0, len(products))
	for _, id := range productIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// ProductListOptions filters product listings
type ProductListOptions struct {
	Gender   string
	Category string
	InStock  *bool
	Limit    int
	Offset   int
}

// List retrieves products with pagination
func (r *ProductRepository) List(ctx context.Context, opts ProductListOptions) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if opts.Gender != "" {
		query = query.Where("gender = ?", opts.Gender)
	}
	if opts.Category != "" {
		query = query.Where("category = ?", opts.Category)
	}
	if opts.InStock != nil {
		query = query.Where("in_stock = ?", *opts.InStock)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if err := query.Order("last_synced DESC").Limit(limit).Offset(opts.Offset).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Latest returns the most recently synced products, cached in Redis
func (r *ProductRepository) Latest(ctx context.Context) ([]models.Product, error) {
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, latestCacheKey).Result()
		if err == nil {
			var products []models.Product
			if jsonErr := json.Unmarshal([]byte(cached), &products); jsonErr == nil {
				return products, nil
			}
			// Corrupt entry; fall through to the database
			r.cache.Del(ctx, latestCacheKey)
		} else if err != redis.Nil {
			logrus.WithError(err).Warn("Redis unavailable, reading latest products from database")
		}
	}

	var products []models.Product
	if err := r.db.WithContext(ctx).
		Order("last_synced DESC").
		Limit(latestLimit).
		Find(&products).Error; err != nil {
		return nil, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(products); err == nil {
			r.cache.Set(ctx, latestCacheKey, data, latestCacheTTL)
		}
	}

	return products, nil
}

// InvalidateLatest drops the cached latest-products entry
func (r *ProductRepository) InvalidateLatest(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, latestCacheKey).Err(); err != nil && err != redis.Nil {
		logrus.WithError(err).Warn("Failed to invalidate latest products cache")
	}
}

// SearchQuery describes a structured product search
type SearchQuery struct {
	Text     string
	Gender   string
	Brand    string
	Category string
	Color    string
	Occasion string
	Season   string
	Style    string
	Size     string
	Fabric   string
	MinPrice *float64
	MaxPrice *float64
	OnSale   *bool
	IsNew    *bool
	InStock  *bool
	Limit    int
	Offset   int
}

// textColumns are the columns each search keyword is matched against
var textColumns = []string{"name", "brand", "description", "category", "color", "style"}

// Search runs a keyword and filter search. Every keyword in the text
// must match at least one text column; filters are conjunctive.
func (r *ProductRepository) Search(ctx context.Context, q SearchQuery) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})

	for _, keyword := range strings.Fields(q.Text) {
		pattern := "%" + keyword + "%"
		conds := make([]string, 0, len(textColumns))
		args := make([]interface{}, 0, len(textColumns))
		for _, col := range textColumns {
			conds = append(conds, col+" ILIKE ?")
			args = append(args, pattern)
		}
		query = query.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	if q.Gender != "" {
		query = query.Where("gender IN ?", []string{q.Gender, string(models.GenderUnisex)})
	}
	if q.Brand != "" {
		query = query.Where("brand ILIKE ?", q.Brand)
	}
	if q.Category != "" {
		query = query.Where("category = ?", strings.ToLower(q.Category))
	}
	if q.Color != "" {
		query = query.Where("color = ?", strings.ToLower(q.Color))
	}
	if q.Occasion != "" {
		query = query.Where("occasion = ?", strings.ToLower(q.Occasion))
	}
	if q.Season != "" {
		query = query.Where("season IN ?", []string{strings.ToLower(q.Season), "all-season"})
	}
	if q.Style != "" {
		query = query.Where("style = ?", strings.ToLower(q.Style))
	}
	if q.Size != "" {
		query = query.Where("sizes @> ?", jsonbElement(strings.ToUpper(q.Size)))
	}
	if q.Fabric != "" {
		query = query.Where("fabric @> ?", jsonbElement(strings.ToLower(q.Fabric)))
	}
	if q.MinPrice != nil {
		query = query.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query = query.Where("price <= ?", *q.MaxPrice)
	}
	if q.OnSale != nil {
		query = query.Where("on_sale = ?", *q.OnSale)
	}
	if q.IsNew != nil {
		query = query.Where("is_new = ?", *q.IsNew)
	}
	if q.InStock != nil {
		query = query.Where("in_stock = ?", *q.InStock)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	var products []models.Product
	if err := query.
		Order("in_stock DESC").
		Order("is_new DESC").
		Order("last_synced DESC").
		Limit(limit).
		Offset(q.Offset).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Candidates returns in-stock products for prompt assembly, optionally
// narrowed by gender
func (r *ProductRepository) Candidates(ctx context.Context, gender string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := r.db.WithContext(ctx).Where("in_stock = ?", true)
	if gender != "" {
		query = query.Where("gender IN ?", []string{gender, string(models.GenderUnisex)})
	}

	var products []models.Product
	if err := query.Order("last_synced DESC").Limit(limit).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// MissingEmbeddings returns products without a stored embedding
func (r *ProductRepository) MissingEmbeddings(ctx context.Context, limit int) ([]models.Product, error) {
	var products []models.Product
	query := r.db.WithContext(ctx).Where("embedding IS NULL")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("last_synced DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// CountAll returns the total number of stored products
func (r *ProductRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}

// jsonbElement renders a single value as a JSON array for jsonb
// containment checks
func jsonbElement(value string) string {
	data, _ := json.Marshal([]string{value})
	return string(data)
}
