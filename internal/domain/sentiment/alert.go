package sentiment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AlertTypeSentimentShift     = "sentiment_shift"
	AlertTypeConcerningFeedback = "concerning_feedback"
	AlertTypeQualityDrop        = "quality_drop"
	AlertTypeBiasDetected       = "bias_detected"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SentimentAlert rows are append-only. The only permitted mutation is acknowledging, once.
type SentimentAlert struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID          uuid.UUID      `gorm:"type:uuid;not null;index;column:org_id" json:"org_id"`
	EmployeeID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_sentiment_alert_dedup,priority:1;column:employee_id" json:"employee_id"`
	Type           string         `gorm:"not null;index:idx_sentiment_alert_dedup,priority:2;column:type" json:"type"`
	Severity       string         `gorm:"not null;column:severity" json:"severity"`
	Message        string         `gorm:"type:text;not null;column:message" json:"message"`
	FeedbackIDs    datatypes.JSON `gorm:"column:feedback_ids" json:"feedback_ids"`
	Acknowledged   bool           `gorm:"not null;default:false;index:idx_sentiment_alert_dedup,priority:3;column:acknowledged" json:"acknowledged"`
	AcknowledgedAt *time.Time     `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy *uuid.UUID     `gorm:"type:uuid;column:acknowledged_by" json:"acknowledged_by,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;index;column:created_at" json:"timestamp"`
}

func (SentimentAlert) TableName() string { return "sentiment_alert" }

func (a *SentimentAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *SentimentAlert) FeedbackIDList() []uuid.UUID {
	if a == nil || len(a.FeedbackIDs) == 0 {
		return nil
	}
	var out []uuid.UUID
	_ = json.Unmarshal(a.FeedbackIDs, &out)
	return out
}

func EncodeIDs(ids []uuid.UUID) datatypes.JSON {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	b, _ := json.Marshal(ids)
	return datatypes.JSON(b)
}

func IsValidAlertType(t string) bool {
	switch t {
	case AlertTypeSentimentShift, AlertTypeConcerningFeedback, AlertTypeQualityDrop, AlertTypeBiasDetected:
		return true
	}
	return false
}
