package performance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IndexedEvidence records one vector the indexer wrote, so a later run can remove vectors whose
// source was deleted or fell out of the indexing window.
type IndexedEvidence struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID      uuid.UUID `gorm:"type:uuid;not null;index;column:org_id" json:"org_id"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_indexed_evidence_vector,priority:1;column:employee_id" json:"employee_id"`
	VectorID   string    `gorm:"not null;uniqueIndex:idx_indexed_evidence_vector,priority:2;column:vector_id" json:"vector_id"`
	SourceType string    `gorm:"not null;column:source_type" json:"source_type"`
	SourceID   uuid.UUID `gorm:"type:uuid;not null;column:source_id" json:"source_id"`
	IndexedAt  time.Time `gorm:"not null;column:indexed_at" json:"indexed_at"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (IndexedEvidence) TableName() string { return "indexed_evidence" }

func (e *IndexedEvidence) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
