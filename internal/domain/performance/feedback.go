package performance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Feedback struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID      uuid.UUID `gorm:"type:uuid;not null;index;column:org_id" json:"org_id"`
	GiverID    uuid.UUID `gorm:"type:uuid;not null;index;column:giver_id" json:"giver_id"`
	ReceiverID uuid.UUID `gorm:"type:uuid;not null;index;column:receiver_id" json:"receiver_id"`
	Text       string    `gorm:"type:text;not null;column:text" json:"text"`
	// Rating is the optional 1-5 score the giver attached.
	Rating   *float64 `gorm:"column:rating" json:"rating,omitempty"`
	Category string   `gorm:"column:category" json:"category,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Feedback) TableName() string { return "feedback" }

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
