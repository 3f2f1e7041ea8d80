package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"catalog-sync-service/internal/models"
	"gorm.io/gorm"
)

// SyncRepository handles database operations for sync runs
type SyncRepository struct {
	db *gorm.DB
}

// NewSyncRepository creates a new sync repository
func NewSyncRepository(db *gorm.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// CreateRun creates a new sync run
func (r *SyncRepository) CreateRun(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// UpdateRun updates an existing sync run
func (r *SyncRepository) UpdateRun(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetRunByID retrieves a sync run by ID
func (r *SyncRepository) GetRunByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// RunListOptions contains options for listing sync runs
type RunListOptions struct {
	FeedSource string
	Status     string
	Limit      int
	Offset     int
}

// ListRuns retrieves sync runs with pagination and filtering
func (r *SyncRepository) ListRuns(ctx context.Context, opts RunListOptions) ([]models.SyncRun, int64, error) {
	var runs []models.SyncRun
	var total int64

	query := r.db.WithContext(ctx).Model(&models.SyncRun{})
	if opts.FeedSource != "" {
		query = query.Where("feed_source = ?", opts.FeedSource)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	if err := query.Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// CreateLog creates a sync log entry
func (r *SyncRepository) CreateLog(ctx context.Context, log *models.SyncLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// LogListOptions contains options for listing logs
type LogListOptions struct {
	Level  string
	Limit  int
	Offset int
}

// GetRunLogs retrieves logs for a sync run
func (r *SyncRepository) GetRunLogs(ctx context.Context, runID uuid.UUID, opts LogListOptions) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	query := r.db.WithContext(ctx).Where("sync_run_id = ?", runID)

	if opts.Level != "" {
		query = query.Where("level = ?", opts.Level)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	err := query.Order("created_at DESC").Find(&logs).Error
	return logs, err
}

// SyncStats contains aggregate sync statistics
type SyncStats struct {
	TotalRuns     int64      `json:"totalRuns"`
	CompletedRuns int64      `json:"completedRuns"`
	FailedRuns    int64      `json:"failedRuns"`
	RunningRuns   int64      `json:"runningRuns"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty"`
}

// GetStats retrieves aggregate sync statistics
func (r *SyncRepository) GetStats(ctx context.Context) (*SyncStats, error) {
	stats := &SyncStats{}

	if err := r.db.WithContext(ctx).Model(&models.SyncRun{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, err
	}

	var statusCounts []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.SyncRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch models.SyncStatus(sc.Status) {
		case models.SyncStatusCompleted:
			stats.CompletedRuns = sc.Count
		case models.SyncStatusFailed:
			stats.FailedRuns = sc.Count
		case models.SyncStatusRunning:
			stats.RunningRuns = sc.Count
		}
	}

	var lastRun models.SyncRun
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.SyncStatusCompleted).
		Order("completed_at DESC").
		First(&lastRun).Error; err == nil && lastRun.CompletedAt != nil {
		stats.LastSyncAt = lastRun.CompletedAt
	}

	return stats, nil
}
