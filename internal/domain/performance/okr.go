package performance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OkrStatusActive    = "active"
	OkrStatusCompleted = "completed"
	OkrStatusCancelled = "cancelled"
)

type Okr struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID       uuid.UUID `gorm:"type:uuid;not null;index;column:org_id" json:"org_id"`
	OwnerID     uuid.UUID `gorm:"type:uuid;not null;index;column:owner_id" json:"owner_id"`
	Objective   string    `gorm:"type:text;not null;column:objective" json:"objective"`
	KeyResults  string    `gorm:"type:text;column:key_results" json:"key_results"`
	Progress    float64   `gorm:"not null;default:0;column:progress" json:"progress"`
	Status      string    `gorm:"not null;default:'active';column:status" json:"status"`
	PeriodStart time.Time `gorm:"column:period_start" json:"period_start"`
	PeriodEnd   time.Time `gorm:"column:period_end" json:"period_end"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Okr) TableName() string { return "okr" }

func (o *Okr) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OkrMember links contributors to an OKR. LeftAt set means the membership is no longer active.
type OkrMember struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OkrID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_okr_member_pair;column:okr_id" json:"okr_id"`
	EmployeeID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_okr_member_pair;index;column:employee_id" json:"employee_id"`
	JoinedAt   time.Time  `gorm:"not null;column:joined_at" json:"joined_at"`
	LeftAt     *time.Time `gorm:"column:left_at" json:"left_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (OkrMember) TableName() string { return "okr_member" }

func (m *OkrMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
