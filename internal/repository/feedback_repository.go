package repository

import (
	"context"

	"catalog-sync-service/internal/models"
	"gorm.io/gorm"
)

// FeedbackRepository handles feedback and outfit cache persistence
type FeedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create stores a feedback record
func (r *FeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

// ListByUser retrieves feedback left by a user, newest first
func (r *FeedbackRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.Feedback
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// SaveOutfit stores a generated outfit result
func (r *FeedbackRepository) SaveOutfit(ctx context.Context, outfit *models.OutfitCache) error {
	return r.db.WithContext(ctx).Create(outfit).Error
}

// LatestOutfit retrieves the most recent cached outfit for a user
func (r *FeedbackRepository) LatestOutfit(ctx context.Context, userID string) (*models.OutfitCache, error) {
	var outfit models.OutfitCache
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&outfit).Error
	if err != nil {
		return nil, err
	}
	return &outfit, nil
}
