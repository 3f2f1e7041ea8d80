package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback stores a user's reaction to a recommended outfit. The comment
// embedding is best-effort; a nil vector means the embedding call failed
// or no comment was given.
type Feedback struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID   string    `gorm:"type:varchar(255);index:idx_feedback_user" json:"userId,omitempty"`
	OutfitID string    `gorm:"type:varchar(255)" json:"outfitId,omitempty"`

	Rating        *int        `json:"rating,omitempty"`
	LikedItems    StringArray `gorm:"type:jsonb;default:'[]'" json:"likedItems"`
	DislikedItems StringArray `gorm:"type:jsonb;default:'[]'" json:"dislikedItems"`

	Comment          string `gorm:"type:text;not null;default:''" json:"comment"`
	CommentEmbedding Vector `gorm:"type:jsonb" json:"-"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for Feedback
func (Feedback) TableName() string {
	return "feedback"
}

// OutfitCache stores the parsed result of an outfit recommendation so a
// user's latest suggestions can be replayed without another model call.
type OutfitCache struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID string    `gorm:"type:varchar(255);not null;index:idx_outfit_cache_user" json:"userId"`

	Profile JSONB  `gorm:"type:jsonb;default:'{}'" json:"profile"`
	Result  JSONB  `gorm:"type:jsonb;default:'{}'" json:"result"`
	Model   string `gorm:"type:varchar(100)" json:"model,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for OutfitCache
func (OutfitCache) TableName() string {
	return "outfit_cache"
}
