package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/services"
)

// Syncer is the sync surface exposed over HTTP
type Syncer interface {
	Sync(ctx context.Context, triggeredBy models.TriggerType) (*services.SyncResult, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error)
	ListRuns(ctx context.Context, opts repository.RunListOptions) ([]models.SyncRun, int64, error)
	GetRunLogs(ctx context.Context, runID uuid.UUID, opts repository.LogListOptions) ([]models.SyncLog, error)
	GetStats(ctx context.Context) (*repository.SyncStats, error)
}

// SyncHandler handles sync endpoints
type SyncHandler struct {
	service Syncer
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service Syncer) *SyncHandler {
	return &SyncHandler{service: service}
}

// TriggerSync runs a feed synchronization
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	result, err := h.service.Sync(c.Request.Context(), models.TriggerManual)
	if err != nil {
		if errors.Is(err, services.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if result.FetchFailed {
		c.JSON(http.StatusOK, gin.H{
			"message":     "feed unavailable, serving cached products",
			"runId":       result.RunID,
			"count":       0,
			"cachedCount": result.CachedCount,
			"fetchFailed": true,
		})
		return
	}

	// Failures covers every stage, including enrich failures recorded
	// after the item itself persisted.
	payload := gin.H{
		"message":  "sync completed",
		"runId":    result.RunID,
		"count":    result.SyncedCount,
		"failures": len(result.Failures),
		"embedded": result.EmbedCount,
	}
	if len(result.Failures) > 0 {
		payload["failureDetails"] = result.Failures
	}
	c.JSON(http.StatusOK, payload)
}

// ListRuns returns sync runs
func (h *SyncHandler) ListRuns(c *gin.Context) {
	opts := repository.RunListOptions{
		FeedSource: c.Query("feedSource"),
		Status:     c.Query("status"),
	}

	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if opts.Limit == 0 {
		opts.Limit = 50 // default limit
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			opts.Offset = o
		}
	}

	runs, total, err := h.service.ListRuns(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  runs,
		"total": total,
	})
}

// GetRun returns a single sync run
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}

// GetRunLogs returns logs for a sync run
func (h *SyncHandler) GetRunLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	opts := repository.LogListOptions{Level: c.Query("level"), Limit: 100}
	logs, err := h.service.GetRunLogs(c.Request.Context(), id, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// GetStats returns sync statistics
func (h *SyncHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
