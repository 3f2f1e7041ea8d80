package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"catalog-sync-service/internal/services"
)

// OutfitGenerator is the outfit surface exposed over HTTP
type OutfitGenerator interface {
	Generate(ctx context.Context, profile services.StyleProfile) (*services.Outfit, error)
}

// OutfitsHandler handles outfit generation endpoints
type OutfitsHandler struct {
	service OutfitGenerator
}

// NewOutfitsHandler creates a new outfits handler
func NewOutfitsHandler(service OutfitGenerator) *OutfitsHandler {
	return &OutfitsHandler{service: service}
}

// Generate builds an outfit recommendation for a style profile
func (h *OutfitsHandler) Generate(c *gin.Context) {
	var profile services.StyleProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outfit, err := h.service.Generate(c.Request.Context(), profile)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAssistantDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrNoCandidates):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": outfit})
}
