package performance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CycleStatusPlanned   = "planned"
	CycleStatusActive    = "active"
	CycleStatusCompleted = "completed"
)

type ReviewCycle struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID     uuid.UUID `gorm:"type:uuid;not null;index;column:org_id" json:"org_id"`
	Name      string    `gorm:"not null;column:name" json:"name"`
	StartDate time.Time `gorm:"not null;column:start_date" json:"start_date"`
	EndDate   time.Time `gorm:"not null;index;column:end_date" json:"end_date"`
	Status    string    `gorm:"not null;default:'planned';column:status" json:"status"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ReviewCycle) TableName() string { return "review_cycle" }

func (c *ReviewCycle) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
