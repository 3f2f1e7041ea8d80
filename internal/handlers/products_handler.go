package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"gorm.io/gorm"
)

// ProductReader is the product read surface exposed over HTTP
type ProductReader interface {
	List(ctx context.Context, opts repository.ProductListOptions) ([]models.Product, int64, error)
	Latest(ctx context.Context) ([]models.Product, error)
	GetByProductID(ctx context.Context, productID string) (*models.Product, error)
}

// ProductsHandler handles product read endpoints
type ProductsHandler struct {
	products ProductReader
}

// NewProductsHandler creates a new products handler
func NewProductsHandler(products ProductReader) *ProductsHandler {
	return &ProductsHandler{products: products}
}

// List returns products with pagination and basic filters
func (h *ProductsHandler) List(c *gin.Context) {
	opts := repository.ProductListOptions{
		Gender:   c.Query("gender"),
		Category: c.Query("category"),
	}

	if inStock := c.Query("inStock"); inStock != "" {
		if v, err := strconv.ParseBool(inStock); err == nil {
			opts.InStock = &v
		}
	}
	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			opts.Offset = o
		}
	}

	products, total, err := h.products.List(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  products,
		"total": total,
	})
}

// Latest returns the most recently synced products
func (h *ProductsHandler) Latest(c *gin.Context) {
	products, err := h.products.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  products,
		"count": len(products),
	})
}

// Get returns a single product by its feed identifier
func (h *ProductsHandler) Get(c *gin.Context) {
	productID := c.Param("productId")
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing product id"})
		return
	}

	product, err := h.products.GetByProductID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}
