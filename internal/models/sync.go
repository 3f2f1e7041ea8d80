package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncStatus represents the status of a sync run
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "RUNNING"
	SyncStatusCompleted SyncStatus = "COMPLETED"
	SyncStatusFailed    SyncStatus = "FAILED"
)

// TriggerType represents what triggered the sync
type TriggerType string

const (
	TriggerManual    TriggerType = "MANUAL"
	TriggerScheduled TriggerType = "SCHEDULED"
)

// FailureStage identifies the pipeline stage an item failed in
type FailureStage string

const (
	StageNormalize FailureStage = "normalize"
	StageEnrich    FailureStage = "enrich"
	StagePersist   FailureStage = "persist"
)

// ItemFailure records a single item that could not be processed.
// Failures are always surfaced in the sync result, never swallowed.
type ItemFailure struct {
	ProductID string       `json:"productId"`
	Stage     FailureStage `json:"stage"`
	Error     string       `json:"error"`
}

// ItemFailures stores the per-run failure list as a JSONB array
type ItemFailures []ItemFailure

func (f ItemFailures) Value() (driver.Value, error) {
	if f == nil {
		return json.Marshal([]ItemFailure{})
	}
	return json.Marshal([]ItemFailure(f))
}

func (f *ItemFailures) Scan(value interface{}) error {
	if value == nil {
		*f = ItemFailures{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, f)
}

// SyncRun represents one execution of the feed sync pipeline
type SyncRun struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	FeedSource string    `gorm:"type:varchar(255);not null;index:idx_sync_runs_feed_source" json:"feedSource"`

	Status      SyncStatus  `gorm:"type:varchar(50);not null;default:'RUNNING';index:idx_sync_runs_status" json:"status"`
	TriggeredBy TriggerType `gorm:"type:varchar(50)" json:"triggeredBy,omitempty"`

	// Counters
	TotalItems  int `gorm:"default:0" json:"totalItems"`
	SyncedCount int `gorm:"default:0" json:"syncedCount"`
	FailedCount int `gorm:"default:0" json:"failedCount"`
	EmbedCount  int `gorm:"default:0" json:"embedCount"`

	// FetchFailed marks a run that fell back to previously persisted
	// records because the feed could not be read.
	FetchFailed bool         `gorm:"default:false" json:"fetchFailed"`
	Failures    ItemFailures `gorm:"type:jsonb;default:'[]'" json:"failures,omitempty"`

	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	Logs []SyncLog `gorm:"foreignKey:SyncRunID" json:"logs,omitempty"`
}

// TableName specifies the table name for SyncRun
func (SyncRun) TableName() string {
	return "sync_runs"
}

// LogLevel represents the severity level of a sync log
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SyncLog represents a log entry for a sync run
type SyncLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SyncRunID uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_logs_run" json:"syncRunId"`

	Level   LogLevel `gorm:"type:varchar(20);not null;default:'info';index:idx_sync_logs_level" json:"level"`
	Message string   `gorm:"type:text;not null" json:"message"`
	Data    JSONB    `gorm:"type:jsonb;default:'{}'" json:"data,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for SyncLog
func (SyncLog) TableName() string {
	return "sync_logs"
}
