package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/services"
)

// FeedbackRecorder is the feedback surface exposed over HTTP
type FeedbackRecorder interface {
	Submit(ctx context.Context, req services.FeedbackRequest) (*models.Feedback, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Feedback, error)
}

// FeedbackHandler handles feedback endpoints
type FeedbackHandler struct {
	service FeedbackRecorder
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(service FeedbackRecorder) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Submit records user feedback on a recommendation
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req services.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feedback, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": feedback})
}

// ListByUser returns a user's feedback history
func (h *FeedbackHandler) ListByUser(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user id"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.service.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  entries,
		"count": len(entries),
	})
}
