package performance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
)

type Employee struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID     uuid.UUID  `gorm:"type:uuid;not null;index;column:org_id" json:"org_id"`
	ManagerID *uuid.UUID `gorm:"type:uuid;index;column:manager_id" json:"manager_id,omitempty"`
	Email     string     `gorm:"not null;uniqueIndex;column:email" json:"email"`
	FirstName string     `gorm:"not null;column:first_name" json:"first_name"`
	LastName  string     `gorm:"not null;column:last_name" json:"last_name"`
	Title     string     `gorm:"column:title" json:"title"`
	// Role is the access role (employee|manager|hr|admin), not the job title.
	Role       string         `gorm:"not null;default:'employee';column:role" json:"role"`
	FocusAreas datatypes.JSON `gorm:"column:focus_areas" json:"focus_areas,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Employee) TableName() string { return "employee" }

func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *Employee) FullName() string {
	if e == nil {
		return ""
	}
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// FocusAreaList decodes FocusAreas; malformed JSON yields an empty list.
func (e *Employee) FocusAreaList() []string {
	if e == nil {
		return nil
	}
	return decodeStringList(e.FocusAreas)
}
