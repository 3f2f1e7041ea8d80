package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/services"
)

// Searcher is the search surface exposed over HTTP
type Searcher interface {
	Search(ctx context.Context, q repository.SearchQuery) ([]models.Product, int64, error)
	SemanticSearch(ctx context.Context, text, gender string, k int) (*services.SemanticResult, error)
}

// SearchHandler handles product search endpoints
type SearchHandler struct {
	service Searcher
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service Searcher) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search runs a keyword and filter search
func (h *SearchHandler) Search(c *gin.Context) {
	q := repository.SearchQuery{
		Text:     c.Query("q"),
		Gender:   c.Query("gender"),
		Brand:    c.Query("brand"),
		Category: c.Query("category"),
		Color:    c.Query("color"),
		Occasion: c.Query("occasion"),
		Season:   c.Query("season"),
		Style:    c.Query("style"),
		Size:     c.Query("size"),
		Fabric:   c.Query("fabric"),
	}

	if minPrice := c.Query("minPrice"); minPrice != "" {
		if v, err := strconv.ParseFloat(minPrice, 64); err == nil {
			q.MinPrice = &v
		}
	}
	if maxPrice := c.Query("maxPrice"); maxPrice != "" {
		if v, err := strconv.ParseFloat(maxPrice, 64); err == nil {
			q.MaxPrice = &v
		}
	}
	if onSale := c.Query("onSale"); onSale != "" {
		if v, err := strconv.ParseBool(onSale); err == nil {
			q.OnSale = &v
		}
	}
	if isNew := c.Query("isNew"); isNew != "" {
		if v, err := strconv.ParseBool(isNew); err == nil {
			q.IsNew = &v
		}
	}
	if inStock := c.Query("inStock"); inStock != "" {
		if v, err := strconv.ParseBool(inStock); err == nil {
			q.InStock = &v
		}
	}
	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			q.Limit = l
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			q.Offset = o
		}
	}

	products, total, err := h.service.Search(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  products,
		"total": total,
	})
}

// SemanticSearch finds products nearest to a free-text query
func (h *SearchHandler) SemanticSearch(c *gin.Context) {
	text := c.Query("q")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	k := 0
	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			k = l
		}
	}

	result, err := h.service.SemanticSearch(c.Request.Context(), text, c.Query("gender"), k)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     result.Products,
		"count":    len(result.Products),
		"semantic": result.Semantic,
	})
}
