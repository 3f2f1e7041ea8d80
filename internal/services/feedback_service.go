package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"catalog-sync-service/internal/encryption"
	"catalog-sync-service/internal/models"
)

// FeedbackStore persists user feedback
type FeedbackStore interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Feedback, error)
}

// FeedbackRequest is a feedback submission
type FeedbackRequest struct {
	UserID        string   `json:"userId" binding:"required"`
	OutfitID      string   `json:"outfitId,omitempty"`
	Rating        *int     `json:"rating,omitempty"`
	LikedItems    []string `json:"likedItems,omitempty"`
	DislikedItems []string `json:"dislikedItems,omitempty"`
	Comment       string   `json:"comment,omitempty"`
}

// FeedbackService records user feedback on recommendations. Comments
// are embedded when possible so they can feed future personalization.
type FeedbackService struct {
	store     FeedbackStore
	enricher  QueryEmbedder
	encryptor *encryption.Encryptor
}

// NewFeedbackService creates a new feedback service. enricher and
// encryptor may be nil; comments are then stored in plaintext.
func NewFeedbackService(store FeedbackStore, enricher QueryEmbedder, encryptor *encryption.Encryptor) *FeedbackService {
	return &FeedbackService{store: store, enricher: enricher, encryptor: encryptor}
}

// Submit validates and stores a feedback entry
func (s *FeedbackService) Submit(ctx context.Context, req FeedbackRequest) (*models.Feedback, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, errors.New("userId is required")
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d", *req.Rating)
	}
	if req.Rating == nil && req.Comment == "" && len(req.LikedItems) == 0 && len(req.DislikedItems) == 0 {
		return nil, errors.New("feedback must contain a rating, comment, or item lists")
	}

	feedback := &models.Feedback{
		ID:            uuid.New(),
		UserID:        req.UserID,
		OutfitID:      req.OutfitID,
		Rating:        req.Rating,
		LikedItems:    req.LikedItems,
		DislikedItems: req.DislikedItems,
		Comment:       strings.TrimSpace(req.Comment),
	}

	// Comment embedding is best effort; feedback is stored either way
	if feedback.Comment != "" && s.enricher != nil && s.enricher.Enabled() {
		embedding, err := s.enricher.EmbedText(ctx, feedback.Comment)
		if err != nil {
			logrus.WithError(err).Warn("Failed to embed feedback comment")
		} else {
			feedback.CommentEmbedding = embedding
		}
	}

	// Comments are user-written text; encrypt at rest when a key is set
	plainComment := feedback.Comment
	if feedback.Comment != "" && s.encryptor != nil {
		encrypted, err := s.encryptor.EncryptString(feedback.Comment)
		if err != nil {
			return nil, fmt.Errorf("encrypting comment: %w", err)
		}
		feedback.Comment = encrypted
	}

	if err := s.store.Create(ctx, feedback); err != nil {
		return nil, fmt.Errorf("storing feedback: %w", err)
	}
	feedback.Comment = plainComment
	return feedback, nil
}

// ListByUser returns a user's feedback history, newest first
func (s *FeedbackService) ListByUser(ctx context.Context, userID string, limit int) ([]models.Feedback, error) {
	entries, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	if s.encryptor != nil {
		for i := range entries {
			plain, err := s.encryptor.DecryptString(entries[i].Comment)
			if err != nil {
				logrus.WithError(err).WithField("feedbackId", entries[i].ID).Warn("Failed to decrypt feedback comment")
				continue
			}
			entries[i].Comment = plain
		}
	}
	return entries, nil
}
