package reviews

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type IndexedEvidenceRepo interface {
	ListByEmployee(dbc dbctx.Context, employeeID uuid.UUID) ([]*types.IndexedEvidence, error)
	// Upsert records rows keyed by (employee_id, vector_id), refreshing indexed_at on conflict.
	Upsert(dbc dbctx.Context, rows []*types.IndexedEvidence) error
	DeleteByVectorIDs(dbc dbctx.Context, employeeID uuid.UUID, vectorIDs []string) error
}

type indexedEvidenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIndexedEvidenceRepo(db *gorm.DB, baseLog *logger.Logger) IndexedEvidenceRepo {
	return &indexedEvidenceRepo{db: db, log: baseLog.With("repo", "IndexedEvidenceRepo")}
}

func (r *indexedEvidenceRepo) ListByEmployee(dbc dbctx.Context, employeeID uuid.UUID) ([]*types.IndexedEvidence, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.IndexedEvidence
	if employeeID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("employee_id = ?", employeeID).
		Order("vector_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *indexedEvidenceRepo) Upsert(dbc dbctx.Context, rows []*types.IndexedEvidence) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.IndexedAt.IsZero() {
			row.IndexedAt = now
		}
		row.UpdatedAt = now
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}, {Name: "vector_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"indexed_at", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *indexedEvidenceRepo) DeleteByVectorIDs(dbc dbctx.Context, employeeID uuid.UUID, vectorIDs []string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if employeeID == uuid.Nil || len(vectorIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("employee_id = ? AND vector_id IN ?", employeeID, vectorIDs).
		Delete(&types.IndexedEvidence{}).Error
}
